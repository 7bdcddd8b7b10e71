package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeParser struct {
	msg *ParsedMessage
	err error
}

func (f *fakeParser) Parse(raw []byte, label string) (*ParsedMessage, error) {
	return f.msg, f.err
}

type fakeEngine struct {
	result *DetectionResult
}

func (f *fakeEngine) Evaluate(msg *ParsedMessage) *DetectionResult {
	copied := *f.result
	return &copied
}

type fakeAI struct {
	analysis *AIAnalysis
	err      error
	calls    int
}

func (f *fakeAI) AnalyzeMessage(ctx context.Context, msg *ParsedMessage, detection *DetectionResult) (*AIAnalysis, error) {
	f.calls++
	return f.analysis, f.err
}

type fakeCache struct {
	entries map[string]*CacheEntry
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*CacheEntry)}
}

func (f *fakeCache) Get(ctx context.Context, hash string) (*CacheEntry, error) {
	if e, ok := f.entries[hash]; ok {
		return e, nil
	}
	return nil, errors.New("not found")
}

func (f *fakeCache) Set(ctx context.Context, entry *CacheEntry) error {
	f.entries[entry.ContentHash] = entry
	return nil
}

func (f *fakeCache) Delete(ctx context.Context, hash string) error {
	delete(f.entries, hash)
	return nil
}

func (f *fakeCache) Cleanup(ctx context.Context) error { return nil }

type fakeTrusted struct {
	domains map[string]bool
}

func (f *fakeTrusted) IsTrusted(from string) bool {
	for d := range f.domains {
		if len(from) > len(d) && from[len(from)-len(d):] == d {
			return true
		}
	}
	return false
}

func testMessage(from string) *ParsedMessage {
	return &ParsedMessage{Headers: ParsedHeaders{FromAddress: from}}
}

func phishingDetection() *DetectionResult {
	return &DetectionResult{
		Score:      65,
		Label:      LabelPhishing,
		Confidence: 0.85,
		Evidence:   []Evidence{{RuleID: "AUTH_FAIL_HINTS", Weight: 20}},
	}
}

func TestAnalyzeRawCachesResult(t *testing.T) {
	cache := newFakeCache()
	svc := NewAnalysisService(
		&fakeParser{msg: testMessage("a@example.com")},
		&fakeEngine{result: phishingDetection()},
		nil, cache, zap.NewNop(),
		true, time.Hour, false, nil,
	)

	raw := []byte("raw message bytes")
	report, err := svc.AnalyzeRaw(context.Background(), raw, "test")
	if err != nil {
		t.Fatalf("AnalyzeRaw() error = %v", err)
	}
	if report.FromCache {
		t.Error("first analysis should not come from cache")
	}

	entry, ok := cache.entries[ContentHash(raw)]
	if !ok {
		t.Fatal("result not stored in cache")
	}
	if entry.Score != 65 || entry.Label != LabelPhishing {
		t.Errorf("cached entry = %+v", entry)
	}

	second, err := svc.AnalyzeRaw(context.Background(), raw, "test")
	if err != nil {
		t.Fatalf("AnalyzeRaw() error = %v", err)
	}
	if !second.FromCache {
		t.Error("second analysis should come from cache")
	}
	if second.Detection.Score != 65 {
		t.Errorf("cached detection = %+v", second.Detection)
	}
}

func TestAnalyzeRawTrustedSenderForcedSafe(t *testing.T) {
	svc := NewAnalysisService(
		&fakeParser{msg: testMessage("alerts@corp.example.com")},
		&fakeEngine{result: phishingDetection()},
		nil, nil, zap.NewNop(),
		false, 0, false,
		&fakeTrusted{domains: map[string]bool{"corp.example.com": true}},
	)

	report, err := svc.AnalyzeRaw(context.Background(), []byte("raw"), "test")
	if err != nil {
		t.Fatalf("AnalyzeRaw() error = %v", err)
	}

	d := report.Detection
	if d.Label != LabelSafe || d.Score != 0 || d.Confidence != 1.0 {
		t.Errorf("trusted sender detection = %+v, want forced safe", d)
	}
	// Evidence is kept for transparency even when the label is overridden.
	if len(d.Evidence) != 1 {
		t.Errorf("evidence = %+v, want preserved", d.Evidence)
	}
}

func TestAnalyzeRawAIFailureIsNotFatal(t *testing.T) {
	ai := &fakeAI{err: errors.New("provider down")}
	svc := NewAnalysisService(
		&fakeParser{msg: testMessage("a@example.com")},
		&fakeEngine{result: phishingDetection()},
		ai, nil, zap.NewNop(),
		false, 0, true, nil,
	)

	report, err := svc.AnalyzeRaw(context.Background(), []byte("raw"), "test")
	if err != nil {
		t.Fatalf("AnalyzeRaw() error = %v, AI failure must not be fatal", err)
	}
	if ai.calls != 1 {
		t.Errorf("AI calls = %d, want 1", ai.calls)
	}
	if report.AI != nil {
		t.Errorf("report.AI = %+v, want nil after provider failure", report.AI)
	}
	if report.Detection.Label != LabelPhishing {
		t.Errorf("rule verdict lost: %+v", report.Detection)
	}
}

func TestAnalyzeRawAttachesAIAnalysis(t *testing.T) {
	ai := &fakeAI{analysis: &AIAnalysis{Verdict: LabelPhishing, AgreesWithRules: true}}
	svc := NewAnalysisService(
		&fakeParser{msg: testMessage("a@example.com")},
		&fakeEngine{result: phishingDetection()},
		ai, nil, zap.NewNop(),
		false, 0, true, nil,
	)

	report, err := svc.AnalyzeRaw(context.Background(), []byte("raw"), "test")
	if err != nil {
		t.Fatalf("AnalyzeRaw() error = %v", err)
	}
	if report.AI == nil || report.AI.Verdict != LabelPhishing {
		t.Errorf("report.AI = %+v", report.AI)
	}
}

func TestAnalyzeRawParserErrorPropagates(t *testing.T) {
	wantErr := errors.New("structural failure")
	svc := NewAnalysisService(
		&fakeParser{err: wantErr},
		&fakeEngine{result: phishingDetection()},
		nil, nil, zap.NewNop(),
		false, 0, false, nil,
	)

	if _, err := svc.AnalyzeRaw(context.Background(), []byte("raw"), "test"); !errors.Is(err, wantErr) {
		t.Errorf("AnalyzeRaw() error = %v, want parser error", err)
	}
}

func TestContentHashIsStable(t *testing.T) {
	a := ContentHash([]byte("same bytes"))
	b := ContentHash([]byte("same bytes"))
	c := ContentHash([]byte("other bytes"))

	if a != b {
		t.Error("hash of identical input differs")
	}
	if a == c {
		t.Error("hash of different input collides")
	}
	if len(a) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(a))
	}
}
