package source

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mailmind/contact-analytics/internal/core"
	"github.com/mailmind/contact-analytics/internal/utils"
)

func drain(t *testing.T, records <-chan *core.EmailRecord) []*core.EmailRecord {
	t.Helper()
	var out []*core.EmailRecord
	timeout := time.After(5 * time.Second)
	for {
		select {
		case record, ok := <-records:
			if !ok {
				return out
			}
			out = append(out, record)
		case <-timeout:
			t.Fatal("timed out draining record channel")
		}
	}
}

func TestJSONLSourceReadsRecords(t *testing.T) {
	input := strings.Join([]string{
		`{"id":"m1","thread_id":"th","from":"Alice <ALICE@example.com>","to":["bob@example.com"],"timestamp":"2026-02-10T09:00:00Z","body_length":12,"sentiment":0.4}`,
		`{"id":"m2","from":"bob@example.com","to":["alice@example.com"],"timestamp":"2026-02-10T09:05:00Z","body":"Thanks, this looks great to me"}`,
		``,
		`not json at all`,
		`{"id":"m3","from":"carol@example.com","to":[],"timestamp":"not-a-timestamp"}`,
	}, "\n")

	s := NewJSONLReaderSource(nil, utils.NewTextProcessor(zap.NewNop()), zap.NewNop(), strings.NewReader(input))
	require.NoError(t, s.Start())

	records := drain(t, s.Records())
	require.Len(t, records, 2, "bad lines are skipped, not fatal")

	m1 := records[0]
	assert.Equal(t, "m1", m1.ID)
	assert.Equal(t, "th", m1.ThreadID)
	assert.Equal(t, "alice@example.com", m1.From, "display name is stripped and lowercased")
	assert.Equal(t, []string{"bob@example.com"}, m1.To)
	assert.Equal(t, 12, m1.BodyLength)
	require.NotNil(t, m1.Sentiment)
	assert.Equal(t, 0.4, *m1.Sentiment)

	m2 := records[1]
	assert.Equal(t, 6, m2.BodyLength, "body length is derived from the body word count")
	assert.Nil(t, m2.Sentiment, "no analyzer configured")
}

func TestJSONLSourceDerivesSentimentFromBody(t *testing.T) {
	input := `{"id":"m1","from":"a@example.com","to":["b@example.com"],"timestamp":"2026-02-10T09:00:00Z","body":"thanks, awesome work"}`

	s := NewJSONLReaderSource(staticAnalyzer{score: 0.75}, utils.NewTextProcessor(zap.NewNop()), zap.NewNop(), strings.NewReader(input))
	require.NoError(t, s.Start())

	records := drain(t, s.Records())
	require.Len(t, records, 1)
	require.NotNil(t, records[0].Sentiment)
	assert.Equal(t, 0.75, *records[0].Sentiment)
}

func TestJSONLSourceKeepsExplicitSentiment(t *testing.T) {
	input := `{"id":"m1","from":"a@example.com","to":["b@example.com"],"timestamp":"2026-02-10T09:00:00Z","body":"terrible","sentiment":0.9}`

	s := NewJSONLReaderSource(staticAnalyzer{score: -0.9}, utils.NewTextProcessor(zap.NewNop()), zap.NewNop(), strings.NewReader(input))
	require.NoError(t, s.Start())

	records := drain(t, s.Records())
	require.Len(t, records, 1)
	require.NotNil(t, records[0].Sentiment)
	assert.Equal(t, 0.9, *records[0].Sentiment, "a sentiment already on the wire wins over the analyzer")
}
