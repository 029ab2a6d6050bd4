package gemini

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"github.com/mailmind/contact-analytics/internal/utils"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// GeminiClient is an implementation of the SentimentAnalyzer interface
// using Google Gemini.
type GeminiClient struct {
	client        *genai.Client
	model         *genai.GenerativeModel
	modelName     string
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
	promptFormat  string
}

// sentimentResponse represents the structured response from the LLM
type sentimentResponse struct {
	Sentiment  float64 `json:"sentiment"`
	Confidence float64 `json:"confidence"`
}

// NewGeminiClient creates a new Gemini sentiment client
func NewGeminiClient(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) (*GeminiClient, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopP(topP)
	model.SetMaxOutputTokens(int32(maxTokens))

	return &GeminiClient{
		client:        client,
		model:         model,
		modelName:     modelName,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
		promptFormat: `You are a sentiment analysis system for email text.
Respond with a JSON object containing:
- sentiment: number between -1 and 1 (compound sentiment, negative means hostile, positive means friendly)
- confidence: number between 0 and 1 (how confident you are in your assessment)

Text:
%s

Respond only with the JSON object and nothing else.`,
	}, nil
}

// AnalyzeSentiment scores the given text in [-1, 1]
func (c *GeminiClient) AnalyzeSentiment(ctx context.Context, text string) (float64, error) {
	processed := c.textProcessor.ProcessText(c.textProcessor.CleanText(text), c.maxBodySize)
	prompt := fmt.Sprintf(c.promptFormat, processed)

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return 0, fmt.Errorf("failed to generate content with Gemini: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return 0, fmt.Errorf("empty response from Gemini")
	}

	var responseText string
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			responseText += string(t)
		}
	}

	score, err := parseSentimentResponse(responseText)
	if err != nil {
		return 0, err
	}

	c.logger.Debug("Gemini sentiment analysis complete",
		zap.String("model", c.modelName),
		zap.Float64("sentiment", score))
	return score, nil
}

// parseSentimentResponse extracts the sentiment score from the LLM's
// response, tolerating prose around the JSON object.
func parseSentimentResponse(responseText string) (float64, error) {
	var parsed sentimentResponse
	if err := json.Unmarshal([]byte(responseText), &parsed); err != nil {
		jsonStart := 0
		jsonEnd := len(responseText)
		for i := 0; i < len(responseText); i++ {
			if responseText[i] == '{' {
				jsonStart = i
				break
			}
		}
		for i := len(responseText) - 1; i >= 0; i-- {
			if responseText[i] == '}' {
				jsonEnd = i + 1
				break
			}
		}
		if jsonStart >= jsonEnd {
			return 0, fmt.Errorf("failed to extract JSON from LLM response: %w", err)
		}
		if err := json.Unmarshal([]byte(responseText[jsonStart:jsonEnd]), &parsed); err != nil {
			return 0, fmt.Errorf("failed to parse LLM response as JSON: %w", err)
		}
	}

	score := parsed.Sentiment
	if score < -1 {
		score = -1
	}
	if score > 1 {
		score = 1
	}
	return score, nil
}

// Close releases the underlying API client.
func (c *GeminiClient) Close() error {
	return c.client.Close()
}
