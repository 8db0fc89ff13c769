package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"doclean/internal/compress"
	"doclean/internal/logger"
)

var compressCmd = &cobra.Command{
	Use:   "compress <in> <out>",
	Short: "Shrink the images embedded in a PDF",
	Long: `Downscale every image embedded in a PDF and re-encode it as JPEG.

Pages, page order and any text layer are preserved. An image is only
replaced when the re-encoded version is smaller, so the embedded image data
never grows. Images the decoder does not understand (JBIG2, CCITT) are left
untouched. in and out may be the same file.`,
	Example: `  # Halve the resolution at JPEG quality 25
  doclean compress scan.pdf scan-small.pdf

  # Keep the resolution, only re-encode
  doclean compress scan.pdf scan-small.pdf --scale-factor 1 --quality 60`,
	Args: cobra.ExactArgs(2),
	RunE: runCompress,
}

func init() {
	rootCmd.AddCommand(compressCmd)

	compressCmd.Flags().Float64("scale-factor", compress.DefaultScaleFactor, "Image scale factor (0.1-1.0)")
	compressCmd.Flags().Int("quality", compress.DefaultQuality, "JPEG quality (1-100)")
}

func runCompress(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("compress")
	in, out := args[0], args[1]

	scale := appConfig.ScaleFactor
	if cmd.Flags().Changed("scale-factor") {
		scale, _ = cmd.Flags().GetFloat64("scale-factor")
	}
	quality := appConfig.Quality
	if cmd.Flags().Changed("quality") {
		quality, _ = cmd.Flags().GetInt("quality")
	}

	if scale < 0.1 {
		return fmt.Errorf("--scale-factor must be between 0.1 and 1.0, got %g", scale)
	}
	if err := compress.Validate(scale, quality); err != nil {
		return handleCompressError(err, log)
	}

	if _, err := validateInputFile(in, log); err != nil {
		return err
	}

	ctx, cancel := commandContext(0, log)
	defer cancel()

	r := &compress.Recompressor{Log: log}
	stats, err := r.Recompress(ctx, in, out, scale, quality)
	if err != nil {
		return handleCompressError(err, log)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d pages, %d of %d images replaced, %d -> %d bytes\n",
		out, stats.Pages, stats.Replaced, stats.Images, stats.InputSize, stats.OutputSize)
	return nil
}

func handleCompressError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Compression failed")

	switch {
	case errors.Is(err, compress.ErrInvalidParameter):
		return fmt.Errorf("invalid compression settings: %w", err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("compression was canceled")
	default:
		return fmt.Errorf("compression failed: %w", err)
	}
}
