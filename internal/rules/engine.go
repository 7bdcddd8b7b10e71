package rules

import (
	"math"
	"time"

	"github.com/mikey/phishing-analyzer/internal/core"
	"go.uber.org/zap"
)

const maxScore = 100

// Thresholds are the score boundaries between risk labels.
type Thresholds struct {
	Suspicious int
	Phishing   int
}

// DefaultThresholds returns the stock label boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{Suspicious: 30, Phishing: 60}
}

// Engine evaluates the fixed rule battery against parsed messages. The rule
// set is fixed at construction; evaluation is deterministic and never fails.
type Engine struct {
	rules      []Rule
	thresholds Thresholds
	logger     *zap.Logger
}

// NewEngine creates an engine over the given battery.
func NewEngine(rules []Rule, thresholds Thresholds, logger *zap.Logger) *Engine {
	logger.Info("Rule engine initialized", zap.Int("rules", len(rules)))
	return &Engine{
		rules:      rules,
		thresholds: thresholds,
		logger:     logger,
	}
}

// Rules returns the battery in evaluation order.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Evaluate runs every rule against the message and aggregates the fired
// evidence into a detection result. A rule that panics is isolated and
// skipped; it still counts as evaluated.
func (e *Engine) Evaluate(msg *core.ParsedMessage) *core.DetectionResult {
	start := time.Now()

	var evidence []core.Evidence
	totalScore := 0

	for _, rule := range e.rules {
		ev := e.runRule(rule, msg)
		if ev == nil {
			continue
		}
		evidence = append(evidence, *ev)
		totalScore += ev.Weight
		e.logger.Debug("Rule fired",
			zap.String("rule_id", rule.ID),
			zap.Int("weight", ev.Weight))
	}

	score := totalScore
	if score > maxScore {
		score = maxScore
	}

	label, confidence := e.labelAndConfidence(score, len(evidence))

	result := &core.DetectionResult{
		Score:              score,
		Label:              label,
		Confidence:         confidence,
		Evidence:           evidence,
		RulesEvaluated:     len(e.rules),
		RulesFired:         len(evidence),
		EvaluationDuration: time.Since(start),
	}

	e.logger.Debug("Message evaluated",
		zap.Int("score", score),
		zap.String("label", label),
		zap.Int("rules_fired", result.RulesFired))

	return result
}

// runRule executes one rule with panic isolation and stamps the rule's
// identity onto the evidence it emits.
func (e *Engine) runRule(rule Rule, msg *core.ParsedMessage) (ev *core.Evidence) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Rule panicked, skipping",
				zap.String("rule_id", rule.ID),
				zap.Any("panic", r))
			ev = nil
		}
	}()

	ev = rule.Check(msg)
	if ev != nil {
		ev.RuleID = rule.ID
		ev.Description = rule.Description
		ev.Weight = rule.Weight
	}
	return ev
}

// labelAndConfidence derives the risk label from the score thresholds and a
// confidence estimate from score and evidence count.
func (e *Engine) labelAndConfidence(score, evidenceCount int) (string, float64) {
	base := math.Min(0.95, 0.5+0.1*float64(evidenceCount))

	var label string
	var confidence float64
	switch {
	case score >= e.thresholds.Phishing:
		label = core.LabelPhishing
		confidence = base
	case score >= e.thresholds.Suspicious:
		label = core.LabelSuspicious
		confidence = base * 0.8
	default:
		label = core.LabelSafe
		confidence = math.Max(0.6, 1.0-float64(score)/float64(e.thresholds.Suspicious))
	}

	return label, math.Round(confidence*100) / 100
}
