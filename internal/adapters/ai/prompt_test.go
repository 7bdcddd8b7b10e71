package ai

import (
	"fmt"
	"strings"
	"testing"

	"github.com/mikey/phishing-analyzer/internal/core"
)

func TestDecodeResponse(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		verdict string
		wantErr bool
	}{
		{
			"bare json",
			`{"verdict":"Phishing","confidence":0.9,"indicators":["spoofed sender"],"agrees_with_rules":true,"explanation":"looks bad"}`,
			"Phishing",
			false,
		},
		{
			"json wrapped in prose",
			"Here is my analysis:\n```json\n{\"verdict\":\"Safe\",\"confidence\":0.7,\"agrees_with_rules\":false,\"explanation\":\"fine\"}\n```\nHope that helps.",
			"Safe",
			false,
		},
		{
			"no json at all",
			"I cannot analyze this message.",
			"",
			true,
		},
		{
			"malformed json",
			"{verdict: Phishing}",
			"",
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := DecodeResponse(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeResponse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if resp.Verdict != tt.verdict {
				t.Errorf("verdict = %q, want %q", resp.Verdict, tt.verdict)
			}
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	msg := &core.ParsedMessage{
		Headers: core.ParsedHeaders{
			FromAddress:           "support@evil.example",
			FromDisplayName:       "PayPal Support",
			ReplyTo:               "collector@elsewhere.example",
			Subject:               "Urgent: verify your account",
			AuthenticationResults: "mx.example.com; spf=fail",
		},
		URLs: []core.ParsedURL{
			{Normalized: "https://bit.ly/3xy", Domain: "bit.ly"},
		},
	}
	detection := &core.DetectionResult{
		Score:      65,
		Label:      core.LabelPhishing,
		Confidence: 0.85,
		Evidence: []core.Evidence{
			{RuleID: "AUTH_FAIL_HINTS", Details: "spf=fail"},
		},
	}

	prompt := BuildPrompt(msg, detection, "body text here")

	for _, want := range []string{
		"support@evil.example",
		"PayPal Support",
		"collector@elsewhere.example",
		"Urgent: verify your account",
		"https://bit.ly/3xy",
		"Phishing (score 65/100, confidence 0.85)",
		"AUTH_FAIL_HINTS: spf=fail",
		"body text here",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildPromptCapsURLList(t *testing.T) {
	msg := &core.ParsedMessage{}
	for i := 0; i < 30; i++ {
		msg.URLs = append(msg.URLs, core.ParsedURL{
			Normalized: fmt.Sprintf("https://site%d.example.com/x", i),
		})
	}

	prompt := BuildPrompt(msg, &core.DetectionResult{Label: core.LabelSafe}, "")

	if strings.Contains(prompt, "site25.example.com") {
		t.Error("prompt lists URLs past the cap")
	}
	if !strings.Contains(prompt, "... and 10 more") {
		t.Errorf("prompt missing elision marker")
	}
}
