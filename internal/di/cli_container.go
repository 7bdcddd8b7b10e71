package di

import (
	"flag"
	"strings"
	"time"

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

// CLIFlags contains all command line flags for the one-shot analyzer
type CLIFlags struct {
	// AI provider flags
	AIEnabled   bool
	Provider    string
	MaxTokens   int
	Temperature float64
	TopP        float64
	MaxBodySize int

	// Bedrock flags
	BedrockRegion  string
	BedrockModelID string

	// Gemini flags
	GeminiAPIKey    string
	GeminiModelName string

	// OpenAI flags
	OpenAIAPIKey    string
	OpenAIModelName string

	// Analysis flags
	TrustedDomains string

	// Input flags
	InputFile  string
	Verbose    bool
	JSONLog    bool
	ConfigFile string
}

// ParseFlags parses command line flags and returns a CLIFlags struct
func ParseFlags() *CLIFlags {
	flags := &CLIFlags{}

	// AI provider flags
	flag.BoolVar(&flags.AIEnabled, "ai", false, "Cross-validate the rule verdict with an AI provider")
	flag.StringVar(&flags.Provider, "provider", "openai", "AI provider (bedrock, gemini, openai)")
	flag.IntVar(&flags.MaxTokens, "max-tokens", 1000, "Maximum tokens for AI response")
	flag.Float64Var(&flags.Temperature, "temperature", 0.1, "Temperature for AI generation")
	flag.Float64Var(&flags.TopP, "top-p", 0.9, "Top-p for AI generation")
	flag.IntVar(&flags.MaxBodySize, "max-body-size", 4096, "Maximum message body size to send to the AI provider")

	// Bedrock flags
	flag.StringVar(&flags.BedrockRegion, "bedrock-region", "us-east-1", "AWS region for Bedrock")
	flag.StringVar(&flags.BedrockModelID, "bedrock-model", "anthropic.claude-v2", "Bedrock model ID")

	// Gemini flags
	flag.StringVar(&flags.GeminiAPIKey, "gemini-api-key", "", "API key for Google Gemini")
	flag.StringVar(&flags.GeminiModelName, "gemini-model", "gemini-pro", "Gemini model name")

	// OpenAI flags
	flag.StringVar(&flags.OpenAIAPIKey, "openai-api-key", "", "API key for OpenAI")
	flag.StringVar(&flags.OpenAIModelName, "openai-model", "gpt-4o-mini", "OpenAI model name")

	// Analysis flags
	flag.StringVar(&flags.TrustedDomains, "trusted", "", "Comma-separated sender domains to treat as trusted")

	// Input flags
	flag.StringVar(&flags.InputFile, "file", "", "Input email file (use stdin if not specified)")
	flag.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose output")
	flag.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	flag.StringVar(&flags.ConfigFile, "config", "", "Path to config file (overrides command line flags)")

	flag.Parse()
	return flags
}

// BuildCLIContainer creates and configures a dependency injection container
// for the one-shot analyzer
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		if flags.ConfigFile != "" {
			cfg, err := config.New()
			if err != nil {
				return nil, err
			}
			logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
			return cfg, nil
		}

		return createConfigFromFlags(flags), nil
	}); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewAIFactory); err != nil {
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

	// Register AI client
	if err := container.Provide(func(cfg *config.Config, f *factory.AIFactory) (core.AIClient, error) {
		if !cfg.GetBool("analysis.ai_enabled") {
			return nil, nil
		}
		return f.CreateAIClient()
	}); err != nil {
		return nil, err
	}

	// Register analysis service with no cache
	if err := container.Provide(func(
		cfg *config.Config,
		msgParser core.MessageParser,
		engine core.RuleEvaluator,
		aiClient core.AIClient,
		trusted core.TrustedDomainChecker,
		logger *zap.Logger,
	) *core.AnalysisService {
		return core.NewAnalysisService(
			msgParser,
			engine,
			aiClient,
			nil, // No cache for one-shot runs
			logger,
			false,
			time.Duration(0),
			cfg.GetBool("analysis.ai_enabled") && aiClient != nil,
			trusted,
		)
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

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags(flags *CLIFlags) *config.Config {
	v := config.NewEmptyViper()

	v.Set("server.filter_type", "cli")
	v.Set("cli.verbose", flags.Verbose)

	v.Set("analysis.ai_enabled", flags.AIEnabled)
	v.Set("ai.provider", flags.Provider)

	switch flags.Provider {
	case "bedrock":
		v.Set("bedrock.region", flags.BedrockRegion)
		v.Set("bedrock.model_id", flags.BedrockModelID)
		v.Set("bedrock.max_tokens", flags.MaxTokens)
		v.Set("bedrock.temperature", flags.Temperature)
		v.Set("bedrock.top_p", flags.TopP)
		v.Set("bedrock.max_body_size", flags.MaxBodySize)
	case "gemini":
		v.Set("gemini.api_key", flags.GeminiAPIKey)
		v.Set("gemini.model_name", flags.GeminiModelName)
		v.Set("gemini.max_tokens", flags.MaxTokens)
		v.Set("gemini.temperature", flags.Temperature)
		v.Set("gemini.top_p", flags.TopP)
		v.Set("gemini.max_body_size", flags.MaxBodySize)
	case "openai":
		v.Set("openai.api_key", flags.OpenAIAPIKey)
		v.Set("openai.model_name", flags.OpenAIModelName)
		v.Set("openai.max_tokens", flags.MaxTokens)
		v.Set("openai.temperature", flags.Temperature)
		v.Set("openai.top_p", flags.TopP)
		v.Set("openai.max_body_size", flags.MaxBodySize)
	}

	if flags.TrustedDomains != "" {
		v.Set("analysis.trusted_domains", strings.Split(flags.TrustedDomains, ","))
	}

	return config.NewFromViper(v)
}
