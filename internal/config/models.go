package config

import (
	"time"
)

// ParserConfig holds the content parser's security limits.
type ParserConfig struct {
	MaxRawSize       int
	MaxHeaderSize    int
	MaxTextSize      int
	MaxURLs          int
	MaxReceived      int
	TimeBudget       time.Duration
	URLContextRadius int
}

// RulesConfig holds rule weight overrides and label thresholds.
type RulesConfig struct {
	Weights             map[string]int
	SuspiciousThreshold int
	PhishingThreshold   int
}

// AIConfig selects the cross-validation provider.
type AIConfig struct {
	Provider string
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

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
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

// GetParser returns the parser limits configuration.
func (c *Config) GetParser() ParserConfig {
	budget, err := c.GetDuration("parser.time_budget")
	if err != nil {
		budget = 30 * time.Second
	}
	return ParserConfig{
		MaxRawSize:       c.GetInt("parser.max_raw_size"),
		MaxHeaderSize:    c.GetInt("parser.max_header_size"),
		MaxTextSize:      c.GetInt("parser.max_text_size"),
		MaxURLs:          c.GetInt("parser.max_urls"),
		MaxReceived:      c.GetInt("parser.max_received"),
		TimeBudget:       budget,
		URLContextRadius: c.GetInt("parser.url_context_radius"),
	}
}

// GetRules returns the rule engine configuration. Weight overrides are keyed
// by rule ID.
func (c *Config) GetRules() RulesConfig {
	weights := make(map[string]int)
	for id, value := range c.v.GetStringMap("rules.weights") {
		switch w := value.(type) {
		case int:
			weights[normalizeRuleID(id)] = w
		case int64:
			weights[normalizeRuleID(id)] = int(w)
		case float64:
			weights[normalizeRuleID(id)] = int(w)
		}
	}
	return RulesConfig{
		Weights:             weights,
		SuspiciousThreshold: c.GetInt("rules.suspicious_threshold"),
		PhishingThreshold:   c.GetInt("rules.phishing_threshold"),
	}
}

// normalizeRuleID maps viper's lowercased map keys back to rule ID form.
func normalizeRuleID(key string) string {
	out := make([]rune, 0, len(key))
	for _, r := range key {
		if r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		out = append(out, r)
	}
	return string(out)
}

// GetAI returns the AI provider selection.
func (c *Config) GetAI() AIConfig {
	return AIConfig{
		Provider: c.GetString("ai.provider"),
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
