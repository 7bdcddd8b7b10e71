package core

import (
	"time"
)

// Risk labels derived from the detection score.
const (
	LabelSafe       = "Safe"
	LabelSuspicious = "Suspicious"
	LabelPhishing   = "Phishing"
)

// ParsedURL represents a URL extracted from email content, normalized for
// downstream inspection. Instances are immutable once created.
type ParsedURL struct {
	Original   string `json:"original"`
	Normalized string `json:"normalized"`
	Domain     string `json:"domain"`
	Path       string `json:"path"`
	Position   int    `json:"position"`
	Context    string `json:"context"`
}

// ParsedHeaders holds the allowlisted header fields of a message. All values
// are MIME-decoded, NFKC-normalized and control-character-stripped. A missing
// header is an empty string, never an error.
type ParsedHeaders struct {
	FromAddress           string   `json:"from_address"`
	FromDisplayName       string   `json:"from_display_name"`
	ToAddress             string   `json:"to_address"`
	ReplyTo               string   `json:"reply_to"`
	ReturnPath            string   `json:"return_path"`
	Subject               string   `json:"subject"`
	Date                  string   `json:"date"`
	Received              []string `json:"received"`
	AuthenticationResults string   `json:"authentication_results"`
	MessageID             string   `json:"message_id"`
}

// ParsedMessage is the structured, safe representation of a raw email
// produced by the content parser.
type ParsedMessage struct {
	Headers            ParsedHeaders `json:"headers"`
	TextBody           string        `json:"text_body"`
	HTMLBody           string        `json:"html_body"`
	HTMLRenderedAsText string        `json:"html_rendered_as_text"`
	URLs               []ParsedURL   `json:"urls"`
	ParseDuration      time.Duration `json:"parse_duration"`
	SecurityWarnings   []string      `json:"security_warnings"`
	RawSize            int           `json:"raw_size"`
	NormalizedSize     int           `json:"normalized_size"`
}

// Evidence is the record a rule emits when it fires.
type Evidence struct {
	RuleID         string `json:"rule_id"`
	Description    string `json:"description"`
	Weight         int    `json:"weight"`
	Details        string `json:"details"`
	MatchedExcerpt string `json:"matched_excerpt,omitempty"`
}

// DetectionResult aggregates the evidence of all fired rules.
type DetectionResult struct {
	Score              int           `json:"score"`
	Label              string        `json:"label"`
	Confidence         float64       `json:"confidence"`
	Evidence           []Evidence    `json:"evidence"`
	RulesEvaluated     int           `json:"rules_evaluated"`
	RulesFired         int           `json:"rules_fired"`
	EvaluationDuration time.Duration `json:"evaluation_duration"`
}

// AIAnalysis is the cross-validation verdict returned by an AI provider for
// an already rule-scored message.
type AIAnalysis struct {
	Verdict         string    `json:"verdict"`
	Confidence      float64   `json:"confidence"`
	Indicators      []string  `json:"indicators"`
	AgreesWithRules bool      `json:"agrees_with_rules"`
	Explanation     string    `json:"explanation"`
	ModelUsed       string    `json:"model_used"`
	AnalyzedAt      time.Time `json:"analyzed_at"`
	ProcessingID    string    `json:"processing_id,omitempty"`
}

// AnalysisReport is the full outcome of one analysis request.
type AnalysisReport struct {
	Message   *ParsedMessage   `json:"message"`
	Detection *DetectionResult `json:"detection"`
	AI        *AIAnalysis      `json:"ai,omitempty"`
	FromCache bool             `json:"from_cache"`
}

// CacheEntry is a cached detection outcome keyed by the SHA-256 hash of the
// raw message bytes.
type CacheEntry struct {
	ContentHash string
	Score       int
	Label       string
	Confidence  float64
	LastSeen    time.Time
	ExpiresAt   time.Time
}
