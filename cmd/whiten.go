package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"doclean/internal/imagefile"
	"doclean/internal/levels"
	"doclean/internal/logger"
)

var whitenCmd = &cobra.Command{
	Use:   "whiten <in> <out>",
	Short: "Whiten the background of a scanned page image",
	Long: `Convert a page image to grayscale and stretch its levels so the paper
background becomes pure white and the ink becomes black.

The black and white points are taken from the image histogram: the darkest
1% of pixels map to black and the brightest 8% map to white. The result is
written as PNG.`,
	Example: `  # Whiten a single scan
  doclean whiten scan.jpg scan-white.png`,
	Args: cobra.ExactArgs(2),
	RunE: runWhiten,
}

func init() {
	rootCmd.AddCommand(whitenCmd)

	whitenCmd.Flags().Bool("strict", false, "Fail on images without tonal range instead of writing a white page")
}

func runWhiten(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("whiten")
	in, out := args[0], args[1]
	strict, _ := cmd.Flags().GetBool("strict")

	if _, err := validateInputFile(in, log); err != nil {
		return err
	}
	if !imagefile.Supported(in) {
		log.Warn().Str("file", in).Msg("File extension is not a known image type")
	}

	ctx, cancel := commandContext(appConfig.CleanupTimeout, log)
	defer cancel()

	adjust := levels.AdjustFile
	if strict {
		adjust = levels.AdjustFileStrict
	}
	th, err := adjust(ctx, in, out, log)
	if err != nil {
		return handleWhitenError(err, log)
	}

	log.Info().
		Str("input", in).
		Str("output", out).
		Uint8("low", th.Low).
		Uint8("high", th.High).
		Msg("Page whitened")
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

func handleWhitenError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Whitening failed")

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("whitening timed out")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("whitening was canceled")
	case errors.Is(err, levels.ErrDegenerateImage):
		return fmt.Errorf("the image has no usable tonal range: %w", err)
	default:
		return fmt.Errorf("whitening failed: %w", err)
	}
}
