package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/mikey/phishing-analyzer/internal/adapters/ai"
	"github.com/mikey/phishing-analyzer/internal/core"
	"github.com/mikey/phishing-analyzer/internal/utils"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIClient is an implementation of the AIClient interface using OpenAI
type OpenAIClient struct {
	client        *openai.Client
	modelName     string
	maxTokens     int
	temperature   float32
	topP          float32
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewOpenAIClient creates a new OpenAI client
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
	}
}

// AnalyzeMessage cross-validates a rule verdict with OpenAI
func (c *OpenAIClient) AnalyzeMessage(ctx context.Context, msg *core.ParsedMessage, detection *core.DetectionResult) (*core.AIAnalysis, error) {
	body := c.textProcessor.ProcessText(messageBody(msg), c.maxBodySize)
	prompt := ai.BuildPrompt(msg, detection, body)

	req := openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a phishing detection system. Respond only with JSON.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion with OpenAI: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from OpenAI")
	}

	parsed, err := ai.DecodeResponse(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	return &core.AIAnalysis{
		Verdict:         parsed.Verdict,
		Confidence:      parsed.Confidence,
		Indicators:      parsed.Indicators,
		AgreesWithRules: parsed.AgreesWithRules,
		Explanation:     parsed.Explanation,
		ModelUsed:       c.modelName,
		AnalyzedAt:      time.Now(),
		ProcessingID:    resp.ID,
	}, nil
}

// messageBody picks the richest text surface available for the prompt.
func messageBody(msg *core.ParsedMessage) string {
	if msg.TextBody != "" {
		return msg.TextBody
	}
	return msg.HTMLRenderedAsText
}
