package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/mailmind/contact-analytics/internal/utils"
	"go.uber.org/zap"
)

// BedrockClient is an implementation of the SentimentAnalyzer interface
// using Amazon Bedrock.
type BedrockClient struct {
	client        *bedrockruntime.Client
	modelID       string
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

// NewBedrockClient creates a new Bedrock sentiment client
func NewBedrockClient(
	client *bedrockruntime.Client,
	modelID string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *BedrockClient {
	return &BedrockClient{
		client:        client,
		modelID:       modelID,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
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
	}
}

// isAnthropicModel checks if the model is an Anthropic Claude model
func (c *BedrockClient) isAnthropicModel() bool {
	return strings.HasPrefix(c.modelID, "anthropic.")
}

// isAmazonTitanModel checks if the model is an Amazon Titan model
func (c *BedrockClient) isAmazonTitanModel() bool {
	return strings.HasPrefix(c.modelID, "amazon.titan")
}

// AnalyzeSentiment scores the given text in [-1, 1]
func (c *BedrockClient) AnalyzeSentiment(ctx context.Context, text string) (float64, error) {
	processed := c.textProcessor.ProcessText(c.textProcessor.CleanText(text), c.maxBodySize)
	prompt := fmt.Sprintf(c.promptFormat, processed)

	var payload []byte
	var err error
	if c.isAnthropicModel() {
		payload, err = json.Marshal(map[string]interface{}{
			"prompt":               fmt.Sprintf("\n\nHuman: %s\n\nAssistant:", prompt),
			"max_tokens_to_sample": c.maxTokens,
			"temperature":          c.temperature,
			"top_p":                c.topP,
		})
	} else if c.isAmazonTitanModel() {
		payload, err = json.Marshal(map[string]interface{}{
			"inputText": prompt,
			"textGenerationConfig": map[string]interface{}{
				"maxTokenCount": c.maxTokens,
				"temperature":   c.temperature,
				"topP":          c.topP,
			},
		})
	} else {
		payload, err = json.Marshal(map[string]interface{}{
			"prompt":      prompt,
			"max_tokens":  c.maxTokens,
			"temperature": c.temperature,
			"top_p":       c.topP,
		})
	}
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	output, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.modelID),
		ContentType: aws.String("application/json"),
		Body:        payload,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to invoke Bedrock model: %w", err)
	}

	responseText, err := c.extractCompletion(output.Body)
	if err != nil {
		return 0, err
	}

	score, err := parseSentimentResponse(responseText)
	if err != nil {
		return 0, err
	}

	c.logger.Debug("Bedrock sentiment analysis complete",
		zap.String("model_id", c.modelID),
		zap.Float64("sentiment", score))
	return score, nil
}

// extractCompletion pulls the generated text out of the model-specific
// response envelope.
func (c *BedrockClient) extractCompletion(body []byte) (string, error) {
	if c.isAnthropicModel() {
		var resp struct {
			Completion string `json:"completion"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("failed to parse Bedrock response: %w", err)
		}
		return resp.Completion, nil
	}
	if c.isAmazonTitanModel() {
		var resp struct {
			Results []struct {
				OutputText string `json:"outputText"`
			} `json:"results"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("failed to parse Bedrock response: %w", err)
		}
		if len(resp.Results) == 0 {
			return "", fmt.Errorf("empty response from Bedrock")
		}
		return resp.Results[0].OutputText, nil
	}
	var resp struct {
		Completion string `json:"completion"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse Bedrock response: %w", err)
	}
	return resp.Completion, nil
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
