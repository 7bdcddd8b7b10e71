package core

import (
	"context"
)

// MessageParser turns raw message bytes into a ParsedMessage.
type MessageParser interface {
	// Parse parses raw email bytes. The label is used for diagnostics only.
	Parse(raw []byte, label string) (*ParsedMessage, error)
}

// RuleEvaluator scores a parsed message against the rule battery.
type RuleEvaluator interface {
	// Evaluate runs every rule and aggregates the fired evidence.
	Evaluate(msg *ParsedMessage) *DetectionResult
}

// AIClient defines the interface for cross-validating a rule verdict with an
// AI provider.
type AIClient interface {
	// AnalyzeMessage asks the provider for an independent verdict on a parsed
	// message, given the rule engine's result.
	AnalyzeMessage(ctx context.Context, msg *ParsedMessage, detection *DetectionResult) (*AIAnalysis, error)
}

// TrustedDomainChecker reports whether a sender address belongs to a domain
// the operator trusts.
type TrustedDomainChecker interface {
	IsTrusted(from string) bool
}

// CacheRepository defines the interface for caching detection results by
// content hash.
type CacheRepository interface {
	// Get retrieves a cached entry for a content hash.
	Get(ctx context.Context, contentHash string) (*CacheEntry, error)

	// Set stores a cache entry.
	Set(ctx context.Context, entry *CacheEntry) error

	// Delete removes a cache entry.
	Delete(ctx context.Context, contentHash string) error

	// Cleanup removes expired entries.
	Cleanup(ctx context.Context) error
}
