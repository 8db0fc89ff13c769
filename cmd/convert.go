package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"doclean/internal/assemble"
	"doclean/internal/cleanup"
	"doclean/internal/compress"
	"doclean/internal/logger"
	"doclean/internal/ocr"
	"doclean/internal/pages"
	"doclean/internal/pipeline"
	"doclean/pkg/models"
)

var convertCmd = &cobra.Command{
	Use:   "convert <input-dir-or-pdf> <output-pdf>",
	Short: "Convert scanned pages into a searchable, compressed PDF",
	Long: `Run the full pipeline over a directory of page images or a PDF of scans:

  1. collect the pages in natural file name order
  2. whiten each page and clean it with unpaper
  3. assemble the cleaned pages into a PDF
  4. add a text layer with ocrmypdf
  5. downscale and re-encode the embedded images
  6. detect the document date from the first page's text

With --rename the output file name gets the detected date appended, e.g.
letter.pdf becomes letter_2023-06-10.pdf. Nothing is written to the output
path when any step fails.`,
	Example: `  # Convert a directory of scans
  doclean convert ~/scans/letter letter.pdf

  # English document, embed the detected date in the file name
  doclean convert ~/scans/invoice invoice.pdf --lang eng --rename

  # Clean four pages at a time and print the result as JSON
  doclean convert scans.pdf archive.pdf --workers 4 --json`,
	Args: cobra.ExactArgs(2),
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().String("lang", "", "OCR language, e.g. deu or deu+eng (default from DOCLEAN_LANGUAGE)")
	convertCmd.Flags().Bool("deskew", true, "Straighten pages during OCR")
	convertCmd.Flags().Bool("no-deskew", false, "Do not straighten pages")
	convertCmd.Flags().Bool("rename", false, "Append the detected document date to the output file name")
	convertCmd.Flags().Bool("no-rename", false, "Keep the output file name as given")
	convertCmd.Flags().Int("workers", 0, "Pages cleaned concurrently (default from DOCLEAN_WORKERS)")
	convertCmd.Flags().Bool("json", false, "Print the result as JSON")

	convertCmd.MarkFlagsMutuallyExclusive("deskew", "no-deskew")
	convertCmd.MarkFlagsMutuallyExclusive("rename", "no-rename")
}

func runConvert(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("convert")
	input, output := args[0], args[1]

	lang, _ := cmd.Flags().GetString("lang")
	deskew, _ := cmd.Flags().GetBool("deskew")
	noDeskew, _ := cmd.Flags().GetBool("no-deskew")
	rename, _ := cmd.Flags().GetBool("rename")
	noRename, _ := cmd.Flags().GetBool("no-rename")
	workers, _ := cmd.Flags().GetInt("workers")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg := pipeline.ConfigFrom(appConfig)
	if lang != "" {
		cfg.Language = lang
	}
	cfg.Deskew = deskew && !noDeskew
	cfg.Rename = rename && !noRename
	if workers > 0 {
		cfg.Workers = workers
	}

	log.Info().
		Str("input", input).
		Str("output", output).
		Str("language", cfg.Language).
		Bool("deskew", cfg.Deskew).
		Bool("rename", cfg.Rename).
		Int("workers", cfg.Workers).
		Msg("Starting conversion")

	if _, err := os.Stat(input); err != nil {
		return fmt.Errorf("input not found: %s", input)
	}

	ctx, cancel := commandContext(0, log)
	defer cancel()

	deps, closeDeps, err := pipeline.NewDeps(ctx, appConfig, cfg.Language, log)
	if err != nil {
		return handleConvertError(err, log)
	}
	defer func() {
		if err := closeDeps(); err != nil {
			log.Warn().Err(err).Msg("Failed to release text recognizer")
		}
	}()

	res, err := pipeline.New(cfg, deps, log).Run(ctx, input, output)
	if err != nil {
		return handleConvertError(err, log)
	}

	return outputConvertResult(cmd, res.Document(input), jsonOutput)
}

func outputConvertResult(cmd *cobra.Command, doc models.Document, jsonOutput bool) error {
	w := cmd.OutOrStdout()
	if jsonOutput {
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to create JSON output: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	fmt.Fprintf(w, "Final PDF saved to %s (%d pages, %d bytes, %s)\n",
		doc.Output, doc.Pages, doc.OutputSize, doc.ProcessingDuration.Round(time.Millisecond))
	if date := doc.DateString(); date != "" {
		fmt.Fprintf(w, "Document date: %s (%q)\n", date, doc.DateText)
	} else {
		fmt.Fprintln(w, "Document date: none found")
	}
	return nil
}

// handleConvertError provides user-friendly messages for pipeline failures
func handleConvertError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Conversion failed")

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("an external tool timed out. Raise DOCLEAN_CLEANUP_TIMEOUT or DOCLEAN_OCR_TIMEOUT: %w", err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("conversion was canceled")
	case errors.Is(err, exec.ErrNotFound):
		return fmt.Errorf("required tool not found. Install unpaper and ocrmypdf or set DOCLEAN_UNPAPER / DOCLEAN_OCRMYPDF: %w", err)
	case errors.Is(err, pages.ErrNoPagesFound):
		return fmt.Errorf("no page images found. Supported types: .png, .jpg, .jpeg, .tif, .tiff: %w", err)
	case errors.Is(err, cleanup.ErrCleanupFailed):
		return fmt.Errorf("page cleanup failed. Check that unpaper can read the page: %w", err)
	case errors.Is(err, assemble.ErrAssembly):
		return fmt.Errorf("could not assemble the cleaned pages into a PDF: %w", err)
	case errors.Is(err, ocr.ErrDiagnosticsParse):
		return fmt.Errorf("ocrmypdf did not report its working directory. Check the installed ocrmypdf version: %w", err)
	case errors.Is(err, ocr.ErrEngineFailed):
		return fmt.Errorf("OCR failed. Check that the tesseract language data for the requested language is installed: %w", err)
	case errors.Is(err, ocr.ErrMissingCredentials):
		return fmt.Errorf("Google Cloud credentials not configured for the vision text source. Set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS: %w", err)
	case errors.Is(err, compress.ErrInvalidParameter):
		return fmt.Errorf("invalid compression settings. Check DOCLEAN_SCALE_FACTOR and DOCLEAN_QUALITY: %w", err)
	default:
		return fmt.Errorf("conversion failed: %w", err)
	}
}
