package ocr

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Stage runs the OCR engine and harvests the per-page text it retained.
type Stage struct {
	Engine  Engine
	Options Options
	Log     zerolog.Logger
}

// NewStage creates an OCR stage.
func NewStage(engine Engine, opts Options, log zerolog.Logger) *Stage {
	return &Stage{Engine: engine, Options: opts, Log: log}
}

// Run OCRs in into out. The engine's text files are read before Run
// returns, so callers may release the engine directory right afterwards.
func (s *Stage) Run(ctx context.Context, in, out string) (*Result, error) {
	const op = "Run"

	if _, err := os.Stat(in); err != nil {
		return nil, NewError(op, err, "intermediate PDF is not readable")
	}

	start := time.Now()
	textDir, err := s.Engine.Run(ctx, in, out, s.Options)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(out); err != nil {
		return nil, NewError(op, ErrEngineFailed, "engine reported success but wrote no output")
	}

	texts, err := ReadPageTexts(textDir)
	if err != nil {
		return nil, WrapError(op, err, "harvesting page texts")
	}
	if len(texts) == 0 {
		s.Log.Warn().Str("text_dir", textDir).Msg("OCR engine retained no page text files")
	}

	res := &Result{
		OutputPath: out,
		TextDir:    textDir,
		Pages:      texts,
		Duration:   time.Since(start),
	}

	s.Log.Info().
		Str("output", out).
		Int("text_pages", len(texts)).
		Dur("duration", res.Duration).
		Msg("OCR complete")
	return res, nil
}
