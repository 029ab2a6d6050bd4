package config

import (
	"fmt"

	"github.com/mailmind/contact-analytics/internal/core"
)

// SourceConfig represents the configuration for the ingest source
type SourceConfig struct {
	Type          string
	ListenAddress string
	Path          string
}

// StoreConfig represents the configuration for the stats store
type StoreConfig struct {
	Type       string
	SQLitePath string
	MySQLDSN   string
}

// SentimentConfig represents the configuration for the sentiment provider
type SentimentConfig struct {
	Provider string
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// ExclusionConfig represents the addresses excluded from analytics
type ExclusionConfig struct {
	Domains   []string
	Addresses []string
	Prefixes  []string
}

// GetSource returns the ingest source configuration
func (c *Config) GetSource() SourceConfig {
	return SourceConfig{
		Type:          c.GetString("source.type"),
		ListenAddress: c.GetString("source.listen_address"),
		Path:          c.GetString("source.path"),
	}
}

// GetStore returns the stats store configuration
func (c *Config) GetStore() StoreConfig {
	return StoreConfig{
		Type:       c.GetString("store.type"),
		SQLitePath: c.GetString("store.sqlite_path"),
		MySQLDSN:   c.GetString("store.mysql_dsn"),
	}
}

// GetSentiment returns the sentiment provider configuration
func (c *Config) GetSentiment() SentimentConfig {
	return SentimentConfig{
		Provider: c.GetString("sentiment.provider"),
	}
}

// GetScoring returns the scoring weight configuration. Validation is the
// scorer's job; bad weights must fail there, not be patched up here.
func (c *Config) GetScoring() (core.ScoreConfig, error) {
	halfLife, err := c.GetDuration("scoring.recency_half_life")
	if err != nil {
		return core.ScoreConfig{}, fmt.Errorf("invalid scoring.recency_half_life: %w", err)
	}
	return core.ScoreConfig{
		FrequencyWeight: c.GetFloat64("scoring.frequency_weight"),
		RecencyWeight:   c.GetFloat64("scoring.recency_weight"),
		LengthWeight:    c.GetFloat64("scoring.length_weight"),
		SentimentWeight: c.GetFloat64("scoring.sentiment_weight"),
		LatencyWeight:   c.GetFloat64("scoring.latency_weight"),
		RecencyHalfLife: halfLife,
	}, nil
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize: c.GetInt("bedrock.max_body_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize: c.GetInt("gemini.max_body_size"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
		MaxBodySize: c.GetInt("openai.max_body_size"),
	}
}

// GetExclusions returns the exclusion configuration
func (c *Config) GetExclusions() ExclusionConfig {
	return ExclusionConfig{
		Domains:   c.GetStringSlice("contacts.excluded_domains"),
		Addresses: c.GetStringSlice("contacts.excluded_addresses"),
		Prefixes:  c.GetStringSlice("contacts.excluded_prefixes"),
	}
}
