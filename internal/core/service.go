package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"go.uber.org/zap"
)

// AnalysisService runs the offline analysis pipeline: parse, evaluate rules,
// and optionally cross-validate with an AI provider. Parsing and evaluation
// are pure; the service adds the stateful conveniences around them (trusted
// domains, result cache, AI).
type AnalysisService struct {
	parser       MessageParser
	engine       RuleEvaluator
	aiClient     AIClient
	cache        CacheRepository
	logger       *zap.Logger
	cacheEnabled bool
	cacheTTL     time.Duration
	aiEnabled    bool
	trusted      TrustedDomainChecker
}

// NewAnalysisService creates a new analysis service.
func NewAnalysisService(
	parser MessageParser,
	engine RuleEvaluator,
	aiClient AIClient,
	cache CacheRepository,
	logger *zap.Logger,
	cacheEnabled bool,
	cacheTTL time.Duration,
	aiEnabled bool,
	trusted TrustedDomainChecker,
) *AnalysisService {
	return &AnalysisService{
		parser:       parser,
		engine:       engine,
		aiClient:     aiClient,
		cache:        cache,
		logger:       logger,
		cacheEnabled: cacheEnabled,
		cacheTTL:     cacheTTL,
		aiEnabled:    aiEnabled,
		trusted:      trusted,
	}
}

// ContentHash returns the SHA-256 hex digest of raw message bytes, used as
// the cache key for detection results.
func ContentHash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// AnalyzeRaw parses raw email bytes and scores the result. Fatal parser
// errors are returned as-is; everything else produces a report.
func (s *AnalysisService) AnalyzeRaw(ctx context.Context, raw []byte, label string) (*AnalysisReport, error) {
	hash := ContentHash(raw)

	if s.cacheEnabled {
		if entry, err := s.cache.Get(ctx, hash); err == nil {
			s.logger.Debug("Cache hit for message", zap.String("content_hash", hash))
			return &AnalysisReport{
				Detection: &DetectionResult{
					Score:      entry.Score,
					Label:      entry.Label,
					Confidence: entry.Confidence,
				},
				FromCache: true,
			}, nil
		}
	}

	msg, err := s.parser.Parse(raw, label)
	if err != nil {
		return nil, err
	}

	detection := s.engine.Evaluate(msg)

	report := &AnalysisReport{
		Message:   msg,
		Detection: detection,
	}

	if s.trusted != nil && s.trusted.IsTrusted(msg.Headers.FromAddress) {
		s.logger.Info("Sender domain is trusted, keeping rule evidence but forcing safe label",
			zap.String("sender", msg.Headers.FromAddress),
			zap.String("action", "trusted_bypass"))
		detection.Score = 0
		detection.Label = LabelSafe
		detection.Confidence = 1.0
		return report, nil
	}

	if s.aiEnabled && s.aiClient != nil {
		ai, err := s.aiClient.AnalyzeMessage(ctx, msg, detection)
		if err != nil {
			s.logger.Error("AI cross-validation failed, keeping rule verdict", zap.Error(err))
		} else {
			report.AI = ai
		}
	}

	if s.cacheEnabled {
		entry := &CacheEntry{
			ContentHash: hash,
			Score:       detection.Score,
			Label:       detection.Label,
			Confidence:  detection.Confidence,
			LastSeen:    time.Now(),
			ExpiresAt:   time.Now().Add(s.cacheTTL),
		}
		if err := s.cache.Set(ctx, entry); err != nil {
			s.logger.Error("Failed to update cache", zap.Error(err))
		}
	}

	return report, nil
}
