// Package ai holds the provider-independent pieces of AI cross-validation:
// prompt construction from a parsed message plus its rule verdict, and
// decoding of the structured response the providers are asked to return.
package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mikey/phishing-analyzer/internal/core"
)

// Response is the structured verdict requested from every provider.
type Response struct {
	Verdict         string   `json:"verdict"`
	Confidence      float64  `json:"confidence"`
	Indicators      []string `json:"indicators"`
	AgreesWithRules bool     `json:"agrees_with_rules"`
	Explanation     string   `json:"explanation"`
}

const promptHeader = `You are a cybersecurity analyst. Analyze this email step-by-step for phishing indicators and cross-validate the verdict of a deterministic rule engine.
Respond with a JSON object containing:
- verdict: one of "Safe", "Suspicious", "Phishing"
- confidence: number between 0 and 1
- indicators: array of short strings naming the indicators you found
- agrees_with_rules: boolean (true if you agree with the rule engine's label)
- explanation: string (brief justification)
`

// BuildPrompt renders the cross-validation prompt. The body text must
// already be truncated by the caller.
func BuildPrompt(msg *core.ParsedMessage, detection *core.DetectionResult, body string) string {
	var b strings.Builder
	b.WriteString(promptHeader)

	b.WriteString("\nHeaders:\n")
	fmt.Fprintf(&b, "From: %s (display name: %q)\n", msg.Headers.FromAddress, msg.Headers.FromDisplayName)
	fmt.Fprintf(&b, "Reply-To: %s\n", msg.Headers.ReplyTo)
	fmt.Fprintf(&b, "Subject: %s\n", msg.Headers.Subject)
	fmt.Fprintf(&b, "Authentication-Results: %s\n", msg.Headers.AuthenticationResults)

	if len(msg.URLs) > 0 {
		b.WriteString("\nExtracted URLs:\n")
		for i, u := range msg.URLs {
			if i >= 20 {
				fmt.Fprintf(&b, "... and %d more\n", len(msg.URLs)-i)
				break
			}
			fmt.Fprintf(&b, "- %s\n", u.Normalized)
		}
	}

	fmt.Fprintf(&b, "\nRule engine verdict: %s (score %d/100, confidence %.2f)\n",
		detection.Label, detection.Score, detection.Confidence)
	for _, ev := range detection.Evidence {
		fmt.Fprintf(&b, "- %s: %s\n", ev.RuleID, ev.Details)
	}

	b.WriteString("\nBody:\n")
	b.WriteString(body)
	b.WriteString("\n\nRespond only with the JSON object and nothing else.")

	return b.String()
}

// DecodeResponse parses a provider reply, tolerating prose around the JSON
// object.
func DecodeResponse(text string) (*Response, error) {
	var resp Response
	if err := json.Unmarshal([]byte(text), &resp); err == nil {
		return &resp, nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in provider response")
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse provider response as JSON: %w", err)
	}
	return &resp, nil
}
