// Package pipeline converts a directory of scanned pages, or a PDF of
// scans, into one searchable and compressed PDF.
//
// The stages run strictly in order: collect, clean each page, assemble,
// OCR, recompress, then detect the document date from the first page's
// text. All intermediate artifacts live in a private work directory that
// is removed when the run ends, successful or not. The output path is only
// written once the final PDF is complete.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"doclean/internal/assemble"
	"doclean/internal/cleanup"
	"doclean/internal/compress"
	"doclean/internal/config"
	"doclean/internal/dating"
	"doclean/internal/logger"
	"doclean/internal/ocr"
	"doclean/internal/pages"
	"doclean/internal/runner"
	"doclean/pkg/models"
)

// Config holds the per-run settings.
type Config struct {
	// Language is the OCR language code, e.g. "deu" or "deu+eng".
	Language string
	// Deskew straightens pages during OCR. Cleanup never deskews.
	Deskew bool
	// Rename moves the output to "<stem>_<YYYY-MM-DD><ext>" when a date
	// is detected.
	Rename bool
	// Workers bounds concurrent page cleanup.
	Workers int

	UnpaperPath    string
	CleanupTimeout time.Duration
	Retries        int

	OCR ocr.Options

	ScaleFactor float64
	Quality     int

	// PurgeOCRTemp removes the OCR engine's retained working directory
	// once its text has been read.
	PurgeOCRTemp bool
}

// ConfigFrom derives pipeline settings from the application config.
func ConfigFrom(c *config.Config) Config {
	opts := ocr.DefaultOptions()
	opts.Language = c.Language
	opts.JBIG2Lossy = c.JBIG2Lossy
	opts.Optimize = c.Optimize
	opts.PNGQuality = c.PNGQuality
	opts.Timeout = c.OCRTimeout

	return Config{
		Language:       c.Language,
		Deskew:         true,
		Workers:        c.Workers,
		UnpaperPath:    c.UnpaperPath,
		CleanupTimeout: c.CleanupTimeout,
		Retries:        c.Retries,
		OCR:            opts,
		ScaleFactor:    c.ScaleFactor,
		Quality:        c.Quality,
		PurgeOCRTemp:   c.PurgeOCRTemp,
	}
}

// Deps are the collaborators a pipeline drives.
type Deps struct {
	// Runner invokes the cleanup tool.
	Runner runner.Runner
	// Engine performs OCR.
	Engine ocr.Engine
	// Recognizer supplies page text for date detection. Nil uses the
	// text the OCR engine retained.
	Recognizer ocr.TextRecognizer
	// Extractor finds date mentions. Nil uses go-dateparser.
	Extractor dating.Extractor
	// Now is the clock used to judge past and future dates.
	Now func() time.Time
}

// Result describes a finished conversion.
type Result struct {
	RunID      string
	OutputPath string
	PageCount  int
	// Date is the detected document date, nil when none was found.
	Date *time.Time
	// DateText is the text the date was parsed from.
	DateText string
	// Renamed reports whether OutputPath carries the date.
	Renamed bool
	// IntermediateSize is the size of the assembled PDF before OCR.
	IntermediateSize int64
	OutputSize       int64
	Duration         time.Duration
}

// Document converts the result into the public document model.
func (r *Result) Document(source string) models.Document {
	return models.Document{
		RunID:              r.RunID,
		Source:             source,
		Output:             r.OutputPath,
		Pages:              r.PageCount,
		Date:               r.Date,
		DateText:           r.DateText,
		Renamed:            r.Renamed,
		IntermediateSize:   r.IntermediateSize,
		OutputSize:         r.OutputSize,
		ProcessingDuration: r.Duration,
	}
}

// Pipeline runs conversions.
type Pipeline struct {
	cfg  Config
	deps Deps
	log  zerolog.Logger
}

// New creates a pipeline.
func New(cfg Config, deps Deps, log zerolog.Logger) *Pipeline {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Extractor == nil {
		deps.Extractor = &dating.DateParser{Languages: dating.LanguageFor(cfg.Language), Now: deps.Now}
	}
	cfg.OCR.Language = cfg.Language
	cfg.OCR.Deskew = cfg.Deskew
	return &Pipeline{cfg: cfg, deps: deps, log: log}
}

// Run converts input, a directory of page images or a PDF, into the
// searchable PDF output. On failure nothing is written at output.
func (p *Pipeline) Run(ctx context.Context, input, output string) (*Result, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := logger.WithRunID(p.log, runID)

	if err := compress.Validate(p.cfg.ScaleFactor, p.cfg.Quality); err != nil {
		return nil, stageError(StageValidate, err)
	}
	if p.deps.Runner == nil || p.deps.Engine == nil {
		return nil, stageError(StageValidate, errors.New("pipeline needs a cleanup runner and an OCR engine"))
	}
	outDir := filepath.Dir(output)
	if info, err := os.Stat(outDir); err != nil || !info.IsDir() {
		return nil, stageError(StageValidate, fmt.Errorf("output directory %s does not exist", outDir))
	}

	workDir, err := os.MkdirTemp("", "doclean-"+runID[:8]+"-")
	if err != nil {
		return nil, stageError(StageValidate, fmt.Errorf("create work directory: %w", err))
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			log.Warn().Err(err).Str("work_dir", workDir).Msg("Failed to remove work directory")
		}
	}()

	log.Info().
		Str("input", input).
		Str("output", output).
		Str("work_dir", workDir).
		Msg("Starting conversion")

	collector := &pages.Collector{
		ExtractDir: filepath.Join(workDir, "extracted"),
		Log:        log.With().Str("stage", StageCollect).Logger(),
	}
	set, err := collector.Collect(ctx, input)
	if err != nil {
		return nil, stageError(StageCollect, err)
	}

	cleanDir := filepath.Join(workDir, "pages")
	if err := os.Mkdir(cleanDir, 0o755); err != nil {
		return nil, stageError(StageCleanup, err)
	}
	cleaner := &cleanup.Stage{
		WorkDir: cleanDir,
		Tool:    p.cfg.UnpaperPath,
		Runner:  p.deps.Runner,
		Policy:  runner.Policy{Timeout: p.cfg.CleanupTimeout, Retries: p.cfg.Retries},
		Workers: p.cfg.Workers,
		Log:     log.With().Str("stage", StageCleanup).Logger(),
	}
	cleaned, err := cleaner.CleanAll(ctx, set)
	if err != nil {
		return nil, stageError(StageCleanup, err)
	}

	intermediate := filepath.Join(workDir, "intermediate.pdf")
	assembler := &assemble.Assembler{Log: log.With().Str("stage", StageAssemble).Logger()}
	if err := assembler.Assemble(ctx, cleaned, intermediate); err != nil {
		return nil, stageError(StageAssemble, err)
	}
	intermediateInfo, err := os.Stat(intermediate)
	if err != nil {
		return nil, stageError(StageAssemble, err)
	}

	searchable := filepath.Join(workDir, "ocr.pdf")
	ocrStage := ocr.NewStage(p.deps.Engine, p.cfg.OCR, log.With().Str("stage", StageOCR).Logger())
	ocrResult, err := ocrStage.Run(ctx, intermediate, searchable)
	if err != nil {
		return nil, stageError(StageOCR, err)
	}

	final := filepath.Join(workDir, "final.pdf")
	recompressor := &compress.Recompressor{Log: log.With().Str("stage", StageCompress).Logger()}
	stats, err := recompressor.Recompress(ctx, searchable, final, p.cfg.ScaleFactor, p.cfg.Quality)
	if err != nil {
		return nil, stageError(StageCompress, err)
	}

	pageImages := make([]string, len(cleaned))
	for i, c := range cleaned {
		pageImages[i] = c.Path
	}
	text := p.firstPageText(ctx, log, ocrResult, ocr.Document{
		PDFPath:    final,
		TextDir:    ocrResult.TextDir,
		PageImages: pageImages,
	})

	if p.cfg.PurgeOCRTemp && ocrResult.TextDir != "" {
		if err := os.RemoveAll(ocrResult.TextDir); err != nil {
			log.Warn().Err(err).Str("text_dir", ocrResult.TextDir).Msg("Failed to purge OCR working directory")
		}
	}

	res := &Result{
		RunID:            runID,
		OutputPath:       output,
		PageCount:        stats.Pages,
		IntermediateSize: intermediateInfo.Size(),
		OutputSize:       stats.OutputSize,
	}

	selector := &dating.Selector{Extractor: p.deps.Extractor, Now: p.deps.Now}
	candidate, found, err := selector.SelectDate(text)
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("Date detection failed")
	case found:
		date := candidate.Date
		res.Date = &date
		res.DateText = candidate.Text
		log.Info().Str("date", candidate.Day()).Str("text", candidate.Text).Msg("Document date detected")
	default:
		log.Info().Msg("No document date detected")
	}

	if p.cfg.Rename && res.Date != nil {
		res.OutputPath = DatedName(output, *res.Date)
		res.Renamed = true
	}

	if err := ctx.Err(); err != nil {
		return nil, stageError(StageOutput, err)
	}
	if err := moveFile(final, res.OutputPath); err != nil {
		return nil, stageError(StageOutput, fmt.Errorf("move final PDF to %s: %w", res.OutputPath, err))
	}

	res.Duration = time.Since(start)
	log.Info().
		Str("output", res.OutputPath).
		Int("pages", res.PageCount).
		Int64("intermediate_size", res.IntermediateSize).
		Int64("output_size", res.OutputSize).
		Dur("duration", res.Duration).
		Msg("Conversion complete")
	return res, nil
}

// firstPageText returns the text date detection works on. Recognizer
// failures are logged and yield no text; a missing date never fails a run.
func (p *Pipeline) firstPageText(ctx context.Context, log zerolog.Logger, res *ocr.Result, doc ocr.Document) string {
	if p.deps.Recognizer == nil {
		return res.FirstPage()
	}

	texts, err := p.deps.Recognizer.Recognize(ctx, doc)
	if err != nil {
		log.Warn().Err(err).Msg("Text recognition for date detection failed")
		return ""
	}
	if len(texts) == 0 {
		return ""
	}
	return texts[0]
}
