package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"doclean/internal/pages"
	"doclean/internal/runner"
)

// TempDirAnnouncement is the diagnostic line ocrmypdf prints right before
// the path of its retained working directory.
const TempDirAnnouncement = "Temporary working files retained at:"

// OCRmyPDF is an Engine backed by the ocrmypdf command-line tool.
type OCRmyPDF struct {
	// Path is the ocrmypdf executable.
	Path    string
	Runner  runner.Runner
	Retries int
	Log     zerolog.Logger
}

// NewOCRmyPDF returns an engine invoking the executable at path.
func NewOCRmyPDF(path string, r runner.Runner, log zerolog.Logger) *OCRmyPDF {
	if path == "" {
		path = "ocrmypdf"
	}
	return &OCRmyPDF{Path: path, Runner: r, Log: log}
}

// Run performs OCR on in, writes the searchable PDF to out and returns the
// engine's retained working directory.
func (e *OCRmyPDF) Run(ctx context.Context, in, out string, opts Options) (string, error) {
	const op = "Run"

	args := opts.Args(in, out)
	policy := runner.Policy{Timeout: opts.Timeout, Retries: e.Retries}

	var diag []byte
	err := runner.Do(ctx, policy, e.Log, e.Path, func(ctx context.Context) error {
		_, stderr, err := e.Runner.Run(ctx, e.Path, args...)
		diag = stderr
		return err
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", WrapError(op, err, "engine did not finish")
		}
		return "", NewError(op, fmt.Errorf("%w: %w", ErrEngineFailed, err), in)
	}

	textDir, err := ParseTempDir(string(diag))
	if err != nil {
		return "", WrapError(op, err, "")
	}

	e.Log.Debug().
		Str("input", in).
		Str("output", out).
		Str("text_dir", textDir).
		Msg("OCR engine finished")
	return textDir, nil
}

// ParseTempDir finds the announcement line in the engine's diagnostic
// output and returns the path on the line that follows it.
func ParseTempDir(diag string) (string, error) {
	lines := strings.Split(strings.ReplaceAll(diag, "\r\n", "\n"), "\n")
	for i, line := range lines {
		if line != TempDirAnnouncement {
			continue
		}
		if i+1 < len(lines) {
			if dir := strings.TrimSpace(lines[i+1]); dir != "" {
				return dir, nil
			}
		}
		return "", fmt.Errorf("%w: announcement is not followed by a path", ErrDiagnosticsParse)
	}
	return "", fmt.Errorf("%w: %q not found in %d lines of output", ErrDiagnosticsParse, TempDirAnnouncement, len(lines))
}

// ReadPageTexts reads every *.txt file in dir, naturally ordered by name.
func ReadPageTexts(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	if err != nil {
		return nil, err
	}
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = filepath.Base(m)
	}
	pages.SortNatural(names)

	texts := make([]string, 0, len(names))
	for _, name := range names {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read page text %s: %w", name, err)
		}
		texts = append(texts, string(b))
	}
	return texts, nil
}

// SidecarRecognizer returns the text files the engine retained.
type SidecarRecognizer struct{}

func (SidecarRecognizer) Recognize(_ context.Context, doc Document) ([]string, error) {
	if doc.TextDir == "" {
		return nil, NewError("Recognize", ErrRecognitionFailed, "no engine text directory")
	}
	texts, err := ReadPageTexts(doc.TextDir)
	if err != nil {
		return nil, WrapError("Recognize", err, doc.TextDir)
	}
	return texts, nil
}
