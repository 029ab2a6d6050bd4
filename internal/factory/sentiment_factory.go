package factory

import (
	"fmt"

	"github.com/mailmind/contact-analytics/internal/adapters/bedrock"
	"github.com/mailmind/contact-analytics/internal/adapters/gemini"
	"github.com/mailmind/contact-analytics/internal/adapters/lexicon"
	"github.com/mailmind/contact-analytics/internal/adapters/openai"
	"github.com/mailmind/contact-analytics/internal/config"
	"github.com/mailmind/contact-analytics/internal/core"
	"github.com/mailmind/contact-analytics/internal/utils"
	"go.uber.org/zap"
)

// SentimentFactory creates sentiment analyzers
type SentimentFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewSentimentFactory creates a new sentiment factory
func NewSentimentFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *SentimentFactory {
	return &SentimentFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateSentimentAnalyzer creates a sentiment analyzer based on the
// configuration. Provider "none" returns nil: records then ingest with
// whatever sentiment their source supplied.
func (f *SentimentFactory) CreateSentimentAnalyzer() (core.SentimentAnalyzer, error) {
	sentimentCfg := f.cfg.GetSentiment()

	switch sentimentCfg.Provider {
	case "none":
		return nil, nil
	case "lexicon":
		return lexicon.NewLexiconClient(f.logger, f.textProcessor), nil
	case "bedrock":
		factory := bedrock.NewFactory(f.cfg, f.logger, f.textProcessor)
		return factory.CreateClient()
	case "gemini":
		factory := gemini.NewFactory(f.cfg, f.logger, f.textProcessor)
		return factory.CreateClient()
	case "openai":
		factory := openai.NewFactory(f.cfg, f.logger, f.textProcessor)
		return factory.CreateClient()
	default:
		return nil, fmt.Errorf("unsupported sentiment provider: %s", sentimentCfg.Provider)
	}
}
