package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/phishing-analyzer/internal/config"
	"github.com/mikey/phishing-analyzer/internal/core"
	"github.com/mikey/phishing-analyzer/internal/factory"
	"github.com/mikey/phishing-analyzer/internal/logging"
	"github.com/mikey/phishing-analyzer/internal/parser"
	"github.com/mikey/phishing-analyzer/internal/ports"
	"github.com/mikey/phishing-analyzer/internal/rules"
	"github.com/mikey/phishing-analyzer/internal/utils"
	"github.com/mikey/phishing-analyzer/internal/whitelist"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewAIFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewCacheFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewFilterFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return nil, err
	}

	// Register content parser
	if err := container.Provide(func(cfg *config.Config, text *utils.TextProcessor, logger *zap.Logger) core.MessageParser {
		pc := cfg.GetParser()
		return parser.New(parser.Limits{
			MaxRawSize:       pc.MaxRawSize,
			MaxHeaderSize:    pc.MaxHeaderSize,
			MaxTextSize:      pc.MaxTextSize,
			MaxURLs:          pc.MaxURLs,
			MaxReceived:      pc.MaxReceived,
			TimeBudget:       pc.TimeBudget,
			URLContextRadius: pc.URLContextRadius,
		}, text, logger)
	}); err != nil {
		return nil, err
	}

	// Register rule engine
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) core.RuleEvaluator {
		rc := cfg.GetRules()
		battery := rules.ApplyWeights(rules.DefaultRules(), rc.Weights)
		thresholds := rules.Thresholds{
			Suspicious: rc.SuspiciousThreshold,
			Phishing:   rc.PhishingThreshold,
		}
		return rules.NewEngine(battery, thresholds, logger)
	}); err != nil {
		return nil, err
	}

	// Register trusted-domain checker
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) core.TrustedDomainChecker {
		return whitelist.NewChecker(cfg.GetStringSlice("analysis.trusted_domains"), logger)
	}); err != nil {
		return nil, err
	}

	// Register AI client. Only constructed when cross-validation is enabled,
	// so a daemon without API credentials still starts.
	if err := container.Provide(func(cfg *config.Config, f *factory.AIFactory) (core.AIClient, error) {
		if !cfg.GetBool("analysis.ai_enabled") {
			return nil, nil
		}
		return f.CreateAIClient()
	}); err != nil {
		return nil, err
	}

	// Register cache repository
	if err := container.Provide(func(f *factory.CacheFactory) (core.CacheRepository, error) {
		if !f.IsCacheEnabled() {
			return nil, nil
		}
		return f.CreateCacheRepository()
	}); err != nil {
		return nil, err
	}

	// Register analysis service
	if err := container.Provide(func(
		cfg *config.Config,
		msgParser core.MessageParser,
		engine core.RuleEvaluator,
		aiClient core.AIClient,
		cacheRepo core.CacheRepository,
		cacheFactory *factory.CacheFactory,
		trusted core.TrustedDomainChecker,
		logger *zap.Logger,
	) (*core.AnalysisService, error) {
		cacheTTL, err := cacheFactory.GetCacheTTL()
		if err != nil {
			return nil, err
		}
		return core.NewAnalysisService(
			msgParser,
			engine,
			aiClient,
			cacheRepo,
			logger,
			cacheFactory.IsCacheEnabled() && cacheRepo != nil,
			cacheTTL,
			cfg.GetBool("analysis.ai_enabled") && aiClient != nil,
			trusted,
		), nil
	}); err != nil {
		return nil, err
	}

	// Register email filter
	if err := container.Provide(func(f *factory.FilterFactory) (ports.EmailFilter, error) {
		return f.CreateEmailFilter()
	}); err != nil {
		return nil, err
	}

	return container, nil
}
