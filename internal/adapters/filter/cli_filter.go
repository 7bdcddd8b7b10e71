package filter

import (
	"context"
	"fmt"

	"github.com/mikey/phishing-analyzer/internal/core"
	"go.uber.org/zap"
)

// CliFilter implements a command-line interface for one-shot message analysis
type CliFilter struct {
	service *core.AnalysisService
	logger  *zap.Logger
	verbose bool
}

// NewCliFilter creates a new CLI filter
func NewCliFilter(service *core.AnalysisService, logger *zap.Logger, verbose bool) (*CliFilter, error) {
	return &CliFilter{
		service: service,
		logger:  logger,
		verbose: verbose,
	}, nil
}

// ProcessMessage analyzes raw message bytes and displays the results
func (f *CliFilter) ProcessMessage(ctx context.Context, raw []byte, label string) (*core.AnalysisReport, error) {
	f.logger.Debug("Processing message", zap.Int("size", len(raw)))

	report, err := f.service.AnalyzeRaw(ctx, raw, label)
	if err != nil {
		f.logger.Error("Failed to analyze message", zap.Error(err))
		fmt.Printf("Error: %v\n", err)
		return nil, err
	}

	f.printReport(report)
	return report, nil
}

func (f *CliFilter) printReport(report *core.AnalysisReport) {
	detection := report.Detection

	if msg := report.Message; msg != nil {
		fmt.Printf("\n=== Message Summary ===\n")
		fmt.Printf("From: %s", msg.Headers.FromAddress)
		if msg.Headers.FromDisplayName != "" {
			fmt.Printf(" (%s)", msg.Headers.FromDisplayName)
		}
		fmt.Printf("\n")
		fmt.Printf("To: %s\n", msg.Headers.ToAddress)
		fmt.Printf("Subject: %s\n", msg.Headers.Subject)
		fmt.Printf("URLs found: %d\n", len(msg.URLs))
		fmt.Printf("Parse time: %v\n", msg.ParseDuration)

		if len(msg.SecurityWarnings) > 0 {
			fmt.Printf("\nSecurity warnings:\n")
			for _, w := range msg.SecurityWarnings {
				fmt.Printf("  - %s\n", w)
			}
		}

		if f.verbose {
			preview := msg.TextBody
			if preview == "" {
				preview = msg.HTMLRenderedAsText
			}
			if len(preview) > 500 {
				preview = preview[:500] + "..."
			}
			fmt.Printf("\nBody preview:\n%s\n", preview)
		}
	}

	fmt.Printf("\n=== Verdict ===\n")
	if report.FromCache {
		fmt.Printf("(cached result)\n")
	}
	fmt.Printf("Label: %s\n", detection.Label)
	fmt.Printf("Score: %d\n", detection.Score)
	fmt.Printf("Confidence: %.2f\n", detection.Confidence)
	fmt.Printf("Rules fired: %d/%d\n", detection.RulesFired, detection.RulesEvaluated)

	if len(detection.Evidence) > 0 {
		fmt.Printf("\nEvidence:\n")
		for _, ev := range detection.Evidence {
			fmt.Printf("  [%s] (+%d) %s\n", ev.RuleID, ev.Weight, ev.Details)
			if f.verbose && ev.MatchedExcerpt != "" {
				fmt.Printf("      excerpt: %q\n", ev.MatchedExcerpt)
			}
		}
	}

	if ai := report.AI; ai != nil {
		fmt.Printf("\n=== AI Cross-Validation ===\n")
		fmt.Printf("Verdict: %s\n", ai.Verdict)
		fmt.Printf("Confidence: %.2f\n", ai.Confidence)
		fmt.Printf("Agrees with rules: %t\n", ai.AgreesWithRules)
		fmt.Printf("Explanation: %s\n", ai.Explanation)
		fmt.Printf("Model: %s\n", ai.ModelUsed)
	}
}

// Start is a no-op for the CLI filter
func (f *CliFilter) Start() error {
	return nil
}

// Stop is a no-op for the CLI filter
func (f *CliFilter) Stop() error {
	return nil
}
