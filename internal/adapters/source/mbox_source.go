package source

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/mail"
	"os"
	"strings"

	"github.com/mailmind/contact-analytics/internal/core"
	"go.uber.org/zap"
)

// MboxSource reads messages from an mbox file (or a single RFC 822
// message) and emits normalized records. The record channel is closed
// when the file is exhausted.
type MboxSource struct {
	converter *Converter
	logger    *zap.Logger
	path      string
	records   chan *core.EmailRecord
	done      chan struct{}
}

// NewMboxSource creates a new mbox file source.
func NewMboxSource(converter *Converter, logger *zap.Logger, path string) *MboxSource {
	return &MboxSource{
		converter: converter,
		logger:    logger,
		path:      path,
		records:   make(chan *core.EmailRecord, 256),
		done:      make(chan struct{}),
	}
}

// Start reads the file in the background, emitting one record per
// message. Messages that fail to parse are logged and skipped.
func (s *MboxSource) Start() error {
	file, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("failed to open mbox file: %w", err)
	}

	go func() {
		defer close(s.records)
		defer file.Close()

		count := 0
		err := forEachMessage(file, func(raw []byte) {
			count++
			record, err := s.convert(raw, count)
			if err != nil {
				s.logger.Warn("Skipping unparseable message",
					zap.Int("index", count),
					zap.Error(err))
				return
			}
			select {
			case s.records <- record:
			case <-s.done:
			}
		})
		if err != nil {
			s.logger.Error("Failed to read mbox file", zap.Error(err))
		}
		s.logger.Info("Finished reading mbox file",
			zap.String("path", s.path),
			zap.Int("messages", count))
	}()

	return nil
}

func (s *MboxSource) convert(raw []byte, index int) (*core.EmailRecord, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	digest := sha256.Sum256(raw)
	fallbackID := "sha256-" + hex.EncodeToString(digest[:16])

	return s.converter.RecordFromMessage(context.Background(), msg, fallbackID)
}

// Records returns the channel records are delivered on.
func (s *MboxSource) Records() <-chan *core.EmailRecord {
	return s.records
}

// Stop aborts an in-progress read.
func (s *MboxSource) Stop() error {
	close(s.done)
	return nil
}

// forEachMessage splits an mbox stream on "From " separator lines and
// calls fn with each raw message. A stream that does not start with a
// separator is treated as a single RFC 822 message.
func forEachMessage(r io.Reader, fn func(raw []byte)) error {
	reader := bufio.NewReader(r)

	first, err := reader.Peek(5)
	if err != nil && err != io.EOF {
		return err
	}
	if !bytes.Equal(first, []byte("From ")) {
		raw, err := io.ReadAll(reader)
		if err != nil {
			return err
		}
		if len(bytes.TrimSpace(raw)) > 0 {
			fn(raw)
		}
		return nil
	}

	var current bytes.Buffer
	flush := func() {
		if current.Len() > 0 {
			fn(append([]byte(nil), current.Bytes()...))
			current.Reset()
		}
	}

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "From ") {
			flush()
			continue
		}
		// Undo mbox ">From" quoting.
		if strings.HasPrefix(line, ">From ") {
			line = line[1:]
		}
		current.WriteString(line)
		current.WriteString("\n")
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	flush()
	return nil
}
