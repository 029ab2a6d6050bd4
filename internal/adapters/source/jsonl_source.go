package source

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mailmind/contact-analytics/internal/core"
	"github.com/mailmind/contact-analytics/internal/utils"
	"go.uber.org/zap"
)

// jsonRecord is the normalized wire form an external sync job emits:
// one JSON object per line. Either body_length or body must be present;
// when body is given the word count (and, if configured, sentiment) is
// derived from it.
type jsonRecord struct {
	ID         string   `json:"id"`
	ThreadID   string   `json:"thread_id"`
	From       string   `json:"from"`
	To         []string `json:"to"`
	Timestamp  string   `json:"timestamp"`
	Body       string   `json:"body,omitempty"`
	BodyLength *int     `json:"body_length,omitempty"`
	Sentiment  *float64 `json:"sentiment,omitempty"`
}

// JSONLSource reads newline-delimited JSON records from a file or
// stream. The record channel is closed when the input is exhausted.
type JSONLSource struct {
	analyzer      core.SentimentAnalyzer
	textProcessor *utils.TextProcessor
	logger        *zap.Logger
	reader        io.Reader
	closer        io.Closer
	records       chan *core.EmailRecord
	done          chan struct{}
}

// NewJSONLSource creates a source reading from the given path, with "-"
// meaning stdin.
func NewJSONLSource(analyzer core.SentimentAnalyzer, textProcessor *utils.TextProcessor, logger *zap.Logger, path string) (*JSONLSource, error) {
	s := &JSONLSource{
		analyzer:      analyzer,
		textProcessor: textProcessor,
		logger:        logger,
		records:       make(chan *core.EmailRecord, 256),
		done:          make(chan struct{}),
	}
	if path == "-" {
		s.reader = os.Stdin
		return s, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open records file: %w", err)
	}
	s.reader = file
	s.closer = file
	return s, nil
}

// NewJSONLReaderSource creates a source reading from an arbitrary reader.
func NewJSONLReaderSource(analyzer core.SentimentAnalyzer, textProcessor *utils.TextProcessor, logger *zap.Logger, r io.Reader) *JSONLSource {
	return &JSONLSource{
		analyzer:      analyzer,
		textProcessor: textProcessor,
		logger:        logger,
		reader:        r,
		records:       make(chan *core.EmailRecord, 256),
		done:          make(chan struct{}),
	}
}

// Start reads the stream in the background. Lines that fail to decode
// are logged and skipped; decoding errors never abort the stream.
func (s *JSONLSource) Start() error {
	go func() {
		defer close(s.records)
		if s.closer != nil {
			defer s.closer.Close()
		}

		scanner := bufio.NewScanner(s.reader)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		line := 0
		for scanner.Scan() {
			line++
			raw := scanner.Bytes()
			if len(raw) == 0 {
				continue
			}

			var jr jsonRecord
			if err := json.Unmarshal(raw, &jr); err != nil {
				s.logger.Warn("Skipping undecodable record line",
					zap.Int("line", line),
					zap.Error(err))
				continue
			}

			record, err := s.convert(&jr)
			if err != nil {
				s.logger.Warn("Skipping malformed record line",
					zap.Int("line", line),
					zap.Error(err))
				continue
			}

			select {
			case s.records <- record:
			case <-s.done:
				return
			}
		}
		if err := scanner.Err(); err != nil {
			s.logger.Error("Failed to read record stream", zap.Error(err))
		}
	}()
	return nil
}

func (s *JSONLSource) convert(jr *jsonRecord) (*core.EmailRecord, error) {
	timestamp, err := time.Parse(time.RFC3339, jr.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("bad timestamp %q: %w", jr.Timestamp, err)
	}

	record := &core.EmailRecord{
		ID:        jr.ID,
		ThreadID:  jr.ThreadID,
		From:      utils.ExtractAddress(jr.From),
		Timestamp: timestamp,
		Sentiment: jr.Sentiment,
	}
	for _, to := range jr.To {
		if addr := utils.ExtractAddress(to); addr != "" {
			record.To = append(record.To, addr)
		}
	}

	switch {
	case jr.BodyLength != nil:
		record.BodyLength = *jr.BodyLength
	case jr.Body != "":
		record.BodyLength = s.textProcessor.WordCount(jr.Body)
	}

	if record.Sentiment == nil && s.analyzer != nil && jr.Body != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		score, err := s.analyzer.AnalyzeSentiment(ctx, jr.Body)
		cancel()
		if err != nil {
			s.logger.Warn("Sentiment analysis failed",
				zap.String("record_id", jr.ID),
				zap.Error(err))
		} else {
			record.Sentiment = &score
		}
	}

	return record, nil
}

// Records returns the channel records are delivered on.
func (s *JSONLSource) Records() <-chan *core.EmailRecord {
	return s.records
}

// Stop aborts an in-progress read.
func (s *JSONLSource) Stop() error {
	close(s.done)
	return nil
}
