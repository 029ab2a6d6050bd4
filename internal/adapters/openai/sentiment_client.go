package openai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mailmind/contact-analytics/internal/utils"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIClient is an implementation of the SentimentAnalyzer interface
// using OpenAI chat completions.
type OpenAIClient struct {
	client        *openai.Client
	modelName     string
	maxTokens     int
	temperature   float32
	topP          float32
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

const sentimentPrompt = `You are a sentiment analysis system for email text.
Respond with a JSON object containing:
- sentiment: number between -1 and 1 (compound sentiment, negative means hostile, positive means friendly)
- confidence: number between 0 and 1 (how confident you are in your assessment)

Text:
%s

Respond only with the JSON object and nothing else.`

// NewOpenAIClient creates a new OpenAI sentiment client
func NewOpenAIClient(
	client *openai.Client,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *OpenAIClient {
	return &OpenAIClient{
		client:        client,
		modelName:     modelName,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
		promptFormat:  sentimentPrompt,
	}
}

// AnalyzeSentiment scores the given text in [-1, 1]
func (c *OpenAIClient) AnalyzeSentiment(ctx context.Context, text string) (float64, error) {
	processed := c.textProcessor.ProcessText(c.textProcessor.CleanText(text), c.maxBodySize)
	prompt := fmt.Sprintf(c.promptFormat, processed)

	req := openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a sentiment analysis system. Respond only with JSON.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
	}
	req.ResponseFormat = &openai.ChatCompletionResponseFormat{
		Type: "json",
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("failed to create chat completion with OpenAI: %w", err)
	}
	if len(resp.Choices) == 0 {
		return 0, fmt.Errorf("empty response from OpenAI")
	}

	score, err := parseSentimentResponse(resp.Choices[0].Message.Content)
	if err != nil {
		return 0, err
	}

	c.logger.Debug("OpenAI sentiment analysis complete",
		zap.String("model", c.modelName),
		zap.Float64("sentiment", score))
	return score, nil
}

// parseSentimentResponse extracts the sentiment score from the LLM's
// response, tolerating prose around the JSON object.
func parseSentimentResponse(responseText string) (float64, error) {
	var parsed sentimentResponse
	if err := json.Unmarshal([]byte(responseText), &parsed); err != nil {
		// Try to extract JSON from the text response
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
