package lexicon

import (
	"context"
	"strings"

	"github.com/mailmind/contact-analytics/internal/utils"
	"go.uber.org/zap"
)

// polarity maps sentiment-bearing words to scores in [-1, 1]. The list
// covers the vocabulary that actually shows up in correspondence; it is
// not meant to rival a trained model, just to give a usable local
// fallback when no LLM provider is configured.
var polarity = map[string]float64{
	"thanks": 0.6, "thank": 0.6, "grateful": 0.8, "appreciate": 0.7,
	"appreciated": 0.7, "great": 0.7, "awesome": 0.9, "excellent": 0.9,
	"good": 0.5, "nice": 0.5, "love": 0.8, "happy": 0.7, "glad": 0.6,
	"wonderful": 0.8, "perfect": 0.8, "congrats": 0.8, "congratulations": 0.8,
	"welcome": 0.4, "best": 0.5, "pleased": 0.6, "excited": 0.7,
	"helpful": 0.6, "fantastic": 0.9, "brilliant": 0.8, "cheers": 0.4,

	"sorry": -0.3, "unfortunately": -0.4, "problem": -0.4, "issue": -0.3,
	"bad": -0.5, "terrible": -0.9, "awful": -0.8, "hate": -0.8,
	"angry": -0.7, "disappointed": -0.6, "disappointing": -0.6,
	"wrong": -0.4, "fail": -0.6, "failed": -0.6, "failure": -0.6,
	"broken": -0.5, "urgent": -0.3, "complaint": -0.6, "unacceptable": -0.8,
	"frustrated": -0.7, "annoyed": -0.6, "worst": -0.9, "useless": -0.7,
}

// negations flip the polarity of the following sentiment word.
var negations = map[string]struct{}{
	"not": {}, "no": {}, "never": {}, "dont": {}, "don't": {},
	"cant": {}, "can't": {}, "wont": {}, "won't": {}, "isnt": {}, "isn't": {},
}

// LexiconClient is a local, dependency-free implementation of the
// SentimentAnalyzer interface based on a polarity word list.
type LexiconClient struct {
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewLexiconClient creates a new lexicon-based sentiment analyzer
func NewLexiconClient(logger *zap.Logger, textProcessor *utils.TextProcessor) *LexiconClient {
	return &LexiconClient{
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// AnalyzeSentiment scores the given text in [-1, 1] by averaging the
// polarity of matched words. Text with no sentiment-bearing words scores
// 0 (neutral).
func (c *LexiconClient) AnalyzeSentiment(ctx context.Context, text string) (float64, error) {
	words := strings.Fields(strings.ToLower(c.textProcessor.CleanText(text)))

	var sum float64
	var matched int
	negate := false
	for _, word := range words {
		word = strings.Trim(word, ".,!?;:()\"'")
		if _, ok := negations[word]; ok {
			negate = true
			continue
		}
		if score, ok := polarity[word]; ok {
			if negate {
				score = -score
			}
			sum += score
			matched++
		}
		negate = false
	}

	if matched == 0 {
		return 0, nil
	}

	compound := sum / float64(matched)
	if compound < -1 {
		compound = -1
	}
	if compound > 1 {
		compound = 1
	}
	return compound, nil
}
