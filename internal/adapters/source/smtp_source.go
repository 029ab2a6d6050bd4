package source

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/mail"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/mailmind/contact-analytics/internal/core"
	"go.uber.org/zap"
)

// SMTPSource is an SMTP server that accepts copies of mail (e.g. BCC'd
// by an MTA or forwarded by a sync job) and emits normalized records.
type SMTPSource struct {
	converter  *Converter
	logger     *zap.Logger
	listenAddr string
	server     *smtp.Server
	records    chan *core.EmailRecord
	done       chan struct{}
}

// NewSMTPSource creates a new SMTP ingest source.
func NewSMTPSource(converter *Converter, logger *zap.Logger, listenAddr string) *SMTPSource {
	return &SMTPSource{
		converter:  converter,
		logger:     logger,
		listenAddr: listenAddr,
		records:    make(chan *core.EmailRecord, 256),
		done:       make(chan struct{}),
	}
}

// Start starts the SMTP server.
func (s *SMTPSource) Start() error {
	s.server = smtp.NewServer(&smtpBackend{source: s})

	s.server.Addr = s.listenAddr
	s.server.Domain = "localhost"
	s.server.ReadTimeout = 30 * time.Second
	s.server.WriteTimeout = 30 * time.Second
	s.server.MaxMessageBytes = 30 * 1024 * 1024 // 30MB
	s.server.MaxRecipients = 50
	s.server.AllowInsecureAuth = true

	s.logger.Info("SMTP ingest source starting", zap.String("address", s.listenAddr))

	go func() {
		if err := s.server.ListenAndServe(); err != nil {
			if err != smtp.ErrServerClosed {
				s.logger.Error("SMTP server error", zap.Error(err))
			}
		}
	}()

	return nil
}

// Records returns the channel records are delivered on.
func (s *SMTPSource) Records() <-chan *core.EmailRecord {
	return s.records
}

// Stop stops the SMTP server. The record channel is left open: session
// goroutines may still be inside Data when Close returns, so they unblock
// via the done channel and the consumer exits on its own signal instead
// of a channel close.
func (s *SMTPSource) Stop() error {
	close(s.done)
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	source *SMTPSource
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{source: b.source}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	source *SMTPSource
	sender string
}

// Reset resets the session state
func (s *smtpSession) Reset() {
	s.sender = ""
}

// Logout handles session teardown
func (s *smtpSession) Logout() error {
	return nil
}

// AuthPlain handles PLAIN authentication (not needed for ingest)
func (s *smtpSession) AuthPlain(_ []byte) error {
	return smtp.ErrAuthUnsupported
}

// Mail sets the envelope sender
func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt accepts any recipient; the record's recipients come from the
// message headers, not the envelope.
func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	return nil
}

// Data handles the message data
func (s *smtpSession) Data(r io.Reader) error {
	rawData, err := io.ReadAll(r)
	if err != nil {
		s.source.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	msg, err := mail.ReadMessage(bytes.NewReader(rawData))
	if err != nil {
		s.source.logger.Error("Failed to parse email message", zap.Error(err))
		return err
	}

	// Messages without a Message-Id still need a stable ID so redelivery
	// stays idempotent; hash the raw bytes.
	digest := sha256.Sum256(rawData)
	fallbackID := "sha256-" + hex.EncodeToString(digest[:16])

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	record, err := s.source.converter.RecordFromMessage(ctx, msg, fallbackID)
	if err != nil {
		s.source.logger.Error("Failed to convert message", zap.Error(err))
		return err
	}

	select {
	case s.source.records <- record:
		return nil
	case <-s.source.done:
		return fmt.Errorf("ingest source is shutting down")
	}
}
