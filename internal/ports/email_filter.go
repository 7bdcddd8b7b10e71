package ports

import (
	"context"

	"github.com/mikey/phishing-analyzer/internal/core"
)

// EmailFilter defines the interface for a mail-flow consumer of the
// analysis pipeline.
type EmailFilter interface {
	// ProcessMessage analyzes raw message bytes and returns the report.
	ProcessMessage(ctx context.Context, raw []byte, label string) (*core.AnalysisReport, error)

	// Start starts the filter service
	Start() error

	// Stop stops the filter service
	Stop() error
}
