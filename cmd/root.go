package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"doclean/internal/config"
	"doclean/internal/logger"
)

var version = "1.0.0"

// appConfig is the configuration loaded by main. Flags override its values
// per command.
var appConfig = config.Default()

var rootCmd = &cobra.Command{
	Use:   "doclean",
	Short: "doclean - turn scanned pages into a searchable, compressed PDF",
	Long: `doclean cleans scanned page images, assembles them into a PDF, adds an
OCR text layer, shrinks the embedded images and detects the document date.

The external tools unpaper and ocrmypdf must be installed for the convert
and whiten pipelines. Tool paths and tuning knobs are read from the
environment (or a .env file), see DOCLEAN_* variables.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command tree with cfg as the base configuration.
func Execute(cfg *config.Config) {
	log := logger.WithComponent("cmd")

	if cfg != nil {
		appConfig = cfg
	}

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// commandContext returns a context that is cancelled on SIGINT/SIGTERM and,
// when timeout is positive, after timeout.
func commandContext(timeout time.Duration, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	if timeout > 0 {
		var timeoutCancel context.CancelFunc
		ctx, timeoutCancel = context.WithTimeout(ctx, timeout)
		parentCancel := cancel
		cancel = func() {
			timeoutCancel()
			parentCancel()
		}
	}

	// Handle interrupt signals for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// validateInputFile checks that path is a non-empty regular file.
func validateInputFile(path string, log zerolog.Logger) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Error().Str("file", path).Msg("Input file not found")
			return nil, fmt.Errorf("input file not found: %s", path)
		}
		if os.IsPermission(err) {
			log.Error().Str("file", path).Msg("Permission denied accessing input file")
			return nil, fmt.Errorf("permission denied accessing input file: %s", path)
		}
		return nil, fmt.Errorf("error accessing input file: %w", err)
	}

	if !info.Mode().IsRegular() {
		log.Error().Str("file", path).Msg("Path is not a regular file")
		return nil, fmt.Errorf("path is not a regular file: %s", path)
	}

	if info.Size() == 0 {
		log.Error().Str("file", path).Msg("Input file is empty")
		return nil, fmt.Errorf("input file is empty: %s", path)
	}

	return info, nil
}
