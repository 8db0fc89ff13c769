package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"doclean/internal/dating"
	"doclean/internal/logger"
)

var dateCmd = &cobra.Command{
	Use:   "date <text-file|->",
	Short: "Detect the document date in recognized text",
	Long: `Find the date mentions in a text file (or stdin with "-") and print the
one convert would pick: the latest date before today, ignoring everything
from the first today-or-future date onwards.`,
	Example: `  # Inspect the text ocrmypdf produced for page one
  doclean date /tmp/ocrmypdf.io.xyz/000001_ocr_hocr.txt

  # Pretend today is the first of January 2024
  echo "Rechnung vom 10. Juni 2023" | doclean date - --today 2024-01-01`,
	Args: cobra.ExactArgs(1),
	RunE: runDate,
}

func init() {
	rootCmd.AddCommand(dateCmd)

	dateCmd.Flags().String("lang", "", "Text language as an OCR code, e.g. deu or deu+eng (default from DOCLEAN_LANGUAGE)")
	dateCmd.Flags().String("today", "", "Reference date (format: YYYY-MM-DD, default: today)")
	dateCmd.Flags().Bool("all", false, "List every date found, not only the selected one")
}

func runDate(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("date")

	lang, _ := cmd.Flags().GetString("lang")
	todayStr, _ := cmd.Flags().GetString("today")
	listAll, _ := cmd.Flags().GetBool("all")

	if lang == "" {
		lang = appConfig.Language
	}

	now := time.Now
	if todayStr != "" {
		today, err := time.Parse(time.DateOnly, todayStr)
		if err != nil {
			return fmt.Errorf("invalid --today date format. Use YYYY-MM-DD: %w", err)
		}
		now = func() time.Time { return today }
	}

	var text []byte
	var err error
	if args[0] == "-" {
		text, err = io.ReadAll(cmd.InOrStdin())
	} else {
		text, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to read text: %w", err)
	}

	parser := &dating.DateParser{Languages: dating.LanguageFor(lang), Now: now}
	w := cmd.OutOrStdout()

	if listAll {
		candidates, err := parser.Extract(string(text))
		if err != nil {
			return fmt.Errorf("date detection failed: %w", err)
		}
		for _, c := range candidates {
			fmt.Fprintf(w, "found\t%s\t%q\n", c.Day(), c.Text)
		}
	}

	selector := &dating.Selector{Extractor: parser, Now: now}
	c, ok, err := selector.SelectDate(string(text))
	if err != nil {
		log.Error().Err(err).Msg("Date detection failed")
		return fmt.Errorf("date detection failed: %w", err)
	}
	if !ok {
		log.Info().Msg("No document date found")
		fmt.Fprintln(w, "none")
		return nil
	}

	log.Info().Str("date", c.Day()).Str("text", c.Text).Msg("Document date selected")
	fmt.Fprintln(w, c.Day())
	return nil
}
