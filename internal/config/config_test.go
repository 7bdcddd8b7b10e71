package config

import (
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())

	if got := cfg.GetInt("parser.max_raw_size"); got != 25*1024*1024 {
		t.Errorf("parser.max_raw_size = %d", got)
	}
	if got := cfg.GetInt("rules.suspicious_threshold"); got != 30 {
		t.Errorf("rules.suspicious_threshold = %d", got)
	}
	if got := cfg.GetInt("rules.phishing_threshold"); got != 60 {
		t.Errorf("rules.phishing_threshold = %d", got)
	}
	if got := cfg.GetString("ai.provider"); got != "openai" {
		t.Errorf("ai.provider = %q", got)
	}
	if got := cfg.GetString("cache.type"); got != "memory" {
		t.Errorf("cache.type = %q", got)
	}
	if got := cfg.GetString("server.headers.score"); got != "X-Phishing-Score" {
		t.Errorf("server.headers.score = %q", got)
	}
	if cfg.GetBool("analysis.ai_enabled") {
		t.Error("analysis.ai_enabled should default to false")
	}
}

func TestGetParser(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())
	pc := cfg.GetParser()

	if pc.MaxRawSize != 25*1024*1024 {
		t.Errorf("MaxRawSize = %d", pc.MaxRawSize)
	}
	if pc.MaxHeaderSize != 64*1024 {
		t.Errorf("MaxHeaderSize = %d", pc.MaxHeaderSize)
	}
	if pc.MaxTextSize != 1024*1024 {
		t.Errorf("MaxTextSize = %d", pc.MaxTextSize)
	}
	if pc.MaxURLs != 500 {
		t.Errorf("MaxURLs = %d", pc.MaxURLs)
	}
	if pc.MaxReceived != 20 {
		t.Errorf("MaxReceived = %d", pc.MaxReceived)
	}
	if pc.TimeBudget != 30*time.Second {
		t.Errorf("TimeBudget = %v", pc.TimeBudget)
	}
}

func TestGetParserBadDurationFallsBack(t *testing.T) {
	v := NewEmptyViper()
	v.Set("parser.time_budget", "not-a-duration")
	pc := NewFromViper(v).GetParser()

	if pc.TimeBudget != 30*time.Second {
		t.Errorf("TimeBudget = %v, want 30s fallback", pc.TimeBudget)
	}
}

func TestGetRulesWeightOverrides(t *testing.T) {
	v := NewEmptyViper()
	v.Set("rules.weights", map[string]interface{}{
		"auth_fail_hints": 40,
		"urgent_language": float64(12),
		"header_mismatch": int64(7),
	})
	rc := NewFromViper(v).GetRules()

	tests := map[string]int{
		"AUTH_FAIL_HINTS": 40,
		"URGENT_LANGUAGE": 12,
		"HEADER_MISMATCH": 7,
	}
	for id, want := range tests {
		if got := rc.Weights[id]; got != want {
			t.Errorf("weight[%s] = %d, want %d", id, got, want)
		}
	}
	if rc.SuspiciousThreshold != 30 || rc.PhishingThreshold != 60 {
		t.Errorf("thresholds = %d/%d", rc.SuspiciousThreshold, rc.PhishingThreshold)
	}
}

func TestGetAIProviderConfigs(t *testing.T) {
	v := NewEmptyViper()
	v.Set("openai.api_key", "sk-test")
	v.Set("bedrock.region", "eu-west-1")
	cfg := NewFromViper(v)

	if got := cfg.GetOpenAI(); got.APIKey != "sk-test" || got.ModelName != "gpt-4o-mini" {
		t.Errorf("GetOpenAI() = %+v", got)
	}
	if got := cfg.GetBedrock(); got.Region != "eu-west-1" || got.ModelID != "anthropic.claude-v2" {
		t.Errorf("GetBedrock() = %+v", got)
	}
	if got := cfg.GetGemini(); got.ModelName != "gemini-pro" {
		t.Errorf("GetGemini() = %+v", got)
	}
}
