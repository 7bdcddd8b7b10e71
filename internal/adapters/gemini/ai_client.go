package gemini

import (
	"context"
	"fmt"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/mikey/phishing-analyzer/internal/adapters/ai"
	"github.com/mikey/phishing-analyzer/internal/core"
	"github.com/mikey/phishing-analyzer/internal/utils"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// GeminiClient is an implementation of the AIClient interface using Google Gemini
type GeminiClient struct {
	client        *genai.Client
	model         *genai.GenerativeModel
	modelName     string
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewGeminiClient creates a new Gemini client
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
	}, nil
}

// Close closes the Gemini client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// AnalyzeMessage cross-validates a rule verdict with Gemini
func (c *GeminiClient) AnalyzeMessage(ctx context.Context, msg *core.ParsedMessage, detection *core.DetectionResult) (*core.AIAnalysis, error) {
	body := c.textProcessor.ProcessText(messageBody(msg), c.maxBodySize)
	prompt := ai.BuildPrompt(msg, detection, body)

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content with Gemini: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("empty response from Gemini")
	}

	responseText := fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0])

	parsed, err := ai.DecodeResponse(responseText)
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
	}, nil
}

func messageBody(msg *core.ParsedMessage) string {
	if msg.TextBody != "" {
		return msg.TextBody
	}
	return msg.HTMLRenderedAsText
}
