package lexicon

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mailmind/contact-analytics/internal/utils"
)

func TestAnalyzeSentiment(t *testing.T) {
	c := NewLexiconClient(zap.NewNop(), utils.NewTextProcessor(zap.NewNop()))
	ctx := context.Background()

	tests := []struct {
		name string
		text string
		min  float64
		max  float64
	}{
		{"positive", "Thanks so much, this is excellent work!", 0.3, 1},
		{"negative", "This is terrible, I am very disappointed.", -1, -0.3},
		{"neutral", "The meeting is at three on Thursday.", 0, 0},
		{"negation flips polarity", "This is not good.", -1, -0.1},
		{"empty text", "", 0, 0},
		{"mixed leans on average", "Great work, but there is a problem.", -0.2, 0.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, err := c.AnalyzeSentiment(ctx, tt.text)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, score, tt.min, "score %v below range", score)
			assert.LessOrEqual(t, score, tt.max, "score %v above range", score)
			assert.GreaterOrEqual(t, score, -1.0)
			assert.LessOrEqual(t, score, 1.0)
		})
	}
}

func TestAnalyzeSentimentIgnoresHTML(t *testing.T) {
	c := NewLexiconClient(zap.NewNop(), utils.NewTextProcessor(zap.NewNop()))

	plain, err := c.AnalyzeSentiment(context.Background(), "thanks, great work")
	require.NoError(t, err)
	html, err := c.AnalyzeSentiment(context.Background(), "<p>thanks, <b>great</b> work</p>")
	require.NoError(t, err)
	assert.Equal(t, plain, html)
}
