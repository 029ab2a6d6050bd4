package factory

import (
	"fmt"

	"github.com/mailmind/contact-analytics/internal/adapters/source"
	"github.com/mailmind/contact-analytics/internal/config"
	"github.com/mailmind/contact-analytics/internal/core"
	"github.com/mailmind/contact-analytics/internal/ports"
	"github.com/mailmind/contact-analytics/internal/utils"
	"go.uber.org/zap"
)

// SourceFactory creates ingest sources based on configuration
type SourceFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	analyzer      core.SentimentAnalyzer
	textProcessor *utils.TextProcessor
}

// NewSourceFactory creates a new source factory
func NewSourceFactory(cfg *config.Config, logger *zap.Logger, analyzer core.SentimentAnalyzer, textProcessor *utils.TextProcessor) *SourceFactory {
	return &SourceFactory{
		cfg:           cfg,
		logger:        logger,
		analyzer:      analyzer,
		textProcessor: textProcessor,
	}
}

// CreateRecordSource creates an ingest source based on the configuration
func (f *SourceFactory) CreateRecordSource() (ports.RecordSource, error) {
	sourceCfg := f.cfg.GetSource()
	converter := source.NewConverter(f.analyzer, f.textProcessor, f.logger)

	switch sourceCfg.Type {
	case "smtp":
		return source.NewSMTPSource(converter, f.logger, sourceCfg.ListenAddress), nil
	case "mbox":
		if sourceCfg.Path == "" {
			return nil, fmt.Errorf("mbox source requires source.path")
		}
		return source.NewMboxSource(converter, f.logger, sourceCfg.Path), nil
	case "jsonl":
		if sourceCfg.Path == "" {
			return nil, fmt.Errorf("jsonl source requires source.path")
		}
		return source.NewJSONLSource(f.analyzer, f.textProcessor, f.logger, sourceCfg.Path)
	default:
		return nil, fmt.Errorf("unsupported source type: %s", sourceCfg.Type)
	}
}
