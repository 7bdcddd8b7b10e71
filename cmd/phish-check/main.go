package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mikey/phishing-analyzer/internal/core"
	"github.com/mikey/phishing-analyzer/internal/di"
	"github.com/mikey/phishing-analyzer/internal/ports"
	"go.uber.org/zap"
)

func main() {
	flags := di.ParseFlags()

	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	if err := container.Invoke(run); err != nil {
		fmt.Printf("Analysis failed: %v\n", err)
		os.Exit(1)
	}
}

// run reads one message and prints its analysis report
func run(
	flags *di.CLIFlags,
	logger *zap.Logger,
	emailFilter ports.EmailFilter,
	aiClient core.AIClient,
) error {
	defer logger.Sync()

	var (
		raw   []byte
		label string
		err   error
	)
	if flags.InputFile != "" {
		raw, err = os.ReadFile(flags.InputFile)
		if err != nil {
			return fmt.Errorf("failed to read input file %s: %w", flags.InputFile, err)
		}
		label = flags.InputFile
		logger.Debug("Read message from file", zap.String("file", flags.InputFile), zap.Int("size", len(raw)))
	} else {
		raw, err = io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read message from stdin: %w", err)
		}
		label = "stdin"
		logger.Debug("Read message from stdin", zap.Int("size", len(raw)))
	}

	if _, err := emailFilter.ProcessMessage(context.Background(), raw, label); err != nil {
		return err
	}

	// Close any resources that need closing
	if closer, ok := aiClient.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close AI client", zap.Error(err))
		}
	}

	return nil
}
