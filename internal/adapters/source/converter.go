package source

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/mailmind/contact-analytics/internal/core"
	"github.com/mailmind/contact-analytics/internal/utils"
	"go.uber.org/zap"
)

// Converter turns raw RFC 822 messages into normalized EmailRecords:
// addresses lowercased and stripped of display names, body length as a
// word count over the cleaned text, thread grouped by References /
// In-Reply-To, and sentiment filled in by the configured analyzer.
type Converter struct {
	analyzer      core.SentimentAnalyzer
	textProcessor *utils.TextProcessor
	logger        *zap.Logger
}

// NewConverter creates a new message converter. analyzer may be nil,
// in which case records are emitted without sentiment.
func NewConverter(analyzer core.SentimentAnalyzer, textProcessor *utils.TextProcessor, logger *zap.Logger) *Converter {
	return &Converter{
		analyzer:      analyzer,
		textProcessor: textProcessor,
		logger:        logger,
	}
}

// RecordFromMessage converts one parsed message. fallbackID is used when
// the message carries no Message-Id header (common in test fixtures and
// some bulk mail).
func (c *Converter) RecordFromMessage(ctx context.Context, msg *mail.Message, fallbackID string) (*core.EmailRecord, error) {
	id := strings.Trim(msg.Header.Get("Message-Id"), "<> \t")
	if id == "" {
		id = fallbackID
	}

	from := utils.ExtractAddress(msg.Header.Get("From"))
	var to []string
	for _, h := range []string{"To", "Cc"} {
		to = append(to, utils.ExtractAddressList(msg.Header.Get(h))...)
	}

	timestamp, err := msg.Header.Date()
	if err != nil {
		// A missing Date header should not drop the message; records
		// need a timestamp, so fall back to now.
		timestamp = time.Now()
	}

	text, err := extractTextFromMessage(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to extract message text: %w", err)
	}

	record := &core.EmailRecord{
		ID:         id,
		ThreadID:   threadID(msg.Header, id),
		From:       from,
		To:         to,
		Timestamp:  timestamp,
		BodyLength: c.textProcessor.WordCount(text),
	}

	if c.analyzer != nil && strings.TrimSpace(text) != "" {
		score, err := c.analyzer.AnalyzeSentiment(ctx, text)
		if err != nil {
			// Sentiment is optional on a record; analysis failures are
			// logged and the record ingests without one.
			c.logger.Warn("Sentiment analysis failed",
				zap.String("record_id", id),
				zap.Error(err))
		} else {
			record.Sentiment = &score
		}
	}

	return record, nil
}

// threadID groups a message into a conversation: the root of the
// References chain when present, then In-Reply-To, then the message's
// own ID (a new thread rooted at itself).
func threadID(header mail.Header, messageID string) string {
	if refs := strings.Fields(header.Get("References")); len(refs) > 0 {
		return strings.Trim(refs[0], "<>")
	}
	if irt := strings.Trim(header.Get("In-Reply-To"), "<> \t"); irt != "" {
		return irt
	}
	return messageID
}
