package factory

import (
	"fmt"

	"github.com/mikey/phishing-analyzer/internal/adapters/bedrock"
	"github.com/mikey/phishing-analyzer/internal/adapters/gemini"
	"github.com/mikey/phishing-analyzer/internal/adapters/openai"
	"github.com/mikey/phishing-analyzer/internal/config"
	"github.com/mikey/phishing-analyzer/internal/core"
	"github.com/mikey/phishing-analyzer/internal/utils"
	"go.uber.org/zap"
)

// AIFactory creates AI cross-validation clients
type AIFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewAIFactory creates a new AI factory
func NewAIFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *AIFactory {
	return &AIFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateAIClient creates a new AI client based on the configuration
func (f *AIFactory) CreateAIClient() (core.AIClient, error) {
	aiConfig := f.cfg.GetAI()

	switch aiConfig.Provider {
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
		return nil, fmt.Errorf("unsupported AI provider: %s", aiConfig.Provider)
	}
}
