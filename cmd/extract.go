package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"doclean/internal/logger"
	"doclean/internal/pages"
)

var extractCmd = &cobra.Command{
	Use:   "extract <pdf> <out-dir>",
	Short: "Write the images embedded in a PDF as page PNGs",
	Long: `Extract every embedded raster image of a PDF into a directory, named so
that natural order matches page order. The output directory can be fed back
into convert.`,
	Example: `  doclean extract scans.pdf ./pages`,
	Args:    cobra.ExactArgs(2),
	RunE:    runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("extract")
	src, outDir := args[0], args[1]

	if _, err := validateInputFile(src, log); err != nil {
		return err
	}

	ctx, cancel := commandContext(0, log)
	defer cancel()

	set, err := pages.ExtractImages(ctx, src, outDir, log)
	if err != nil {
		log.Error().Err(err).Msg("Extraction failed")
		return fmt.Errorf("extraction failed: %w", err)
	}

	for _, p := range set {
		fmt.Fprintln(cmd.OutOrStdout(), p.Path)
	}
	log.Info().Int("images", len(set)).Str("dir", outDir).Msg("Images extracted")
	return nil
}
