// Package cleanup turns each page image into a bilevel page artifact: the
// page is whitened with the levels package and then despeckled and
// binarized by the external unpaper tool.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"doclean/internal/imagefile"
	"doclean/internal/levels"
	"doclean/internal/pages"
	"doclean/internal/runner"
)

// ErrCleanupFailed is returned when the cleanup tool fails or produces no
// output for a page.
var ErrCleanupFailed = errors.New("page cleanup failed")

// Error names the page whose cleanup failed.
type Error struct {
	Index int
	Page  string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("cleanup of page %d (%s) failed: %v", e.Index+1, e.Page, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CleanedPage is the bilevel artifact produced for one input page.
type CleanedPage struct {
	Index int
	Path  string
}

// Stage runs the per-page cleanup.
type Stage struct {
	// WorkDir receives all intermediate and final page artifacts.
	WorkDir string
	// Tool is the unpaper executable.
	Tool   string
	Runner runner.Runner
	Policy runner.Policy
	// Deskew lets the tool straighten pages. The pipeline leaves this off
	// and deskews during OCR instead.
	Deskew bool
	// Workers bounds the number of pages cleaned concurrently.
	Workers int
	Log     zerolog.Logger
}

// ArtifactName returns the zero-padded base name for page index of total,
// keeping lexicographic and ordinal order aligned.
func ArtifactName(index, total int) string {
	width := len(strconv.Itoa(max(total-1, 0)))
	return fmt.Sprintf("%0*d", width, index)
}

// Clean whitens and binarizes one page.
func (s *Stage) Clean(ctx context.Context, page pages.Page, total int) (CleanedPage, error) {
	base := filepath.Join(s.WorkDir, ArtifactName(page.Index, total))
	adjusted := base + "-adjusted.png"
	bilevel := base + ".pbm"
	final := base + ".png"

	fail := func(err error) (CleanedPage, error) {
		return CleanedPage{}, &Error{Index: page.Index, Page: page.Path, Err: err}
	}

	if _, err := levels.AdjustFile(ctx, page.Path, adjusted, s.Log); err != nil {
		return fail(err)
	}

	args := []string{}
	if !s.Deskew {
		args = append(args, "--no-deskew")
	}
	args = append(args, adjusted, bilevel)

	err := runner.Do(ctx, s.Policy, s.Log, s.Tool, func(ctx context.Context) error {
		// unpaper refuses to overwrite, and a failed attempt may leave a
		// partial file behind.
		os.Remove(bilevel)
		_, _, err := s.Runner.Run(ctx, s.Tool, args...)
		return err
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fail(err)
		}
		return fail(fmt.Errorf("%w: %w", ErrCleanupFailed, err))
	}

	if _, err := os.Stat(bilevel); err != nil {
		return fail(fmt.Errorf("%w: tool produced no output at %s", ErrCleanupFailed, bilevel))
	}

	img, err := imagefile.Load(bilevel)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrCleanupFailed, err))
	}
	if err := imagefile.SavePNG(final, img); err != nil {
		return fail(err)
	}

	os.Remove(adjusted)
	os.Remove(bilevel)

	s.Log.Info().
		Int("page", page.Index+1).
		Int("total", total).
		Str("source", page.Name()).
		Str("output", final).
		Msg("Page cleaned")

	return CleanedPage{Index: page.Index, Path: final}, nil
}

// CleanAll cleans every page of set and returns the artifacts in ordinal
// order. The first failure aborts the remaining pages.
func (s *Stage) CleanAll(ctx context.Context, set pages.Set) ([]CleanedPage, error) {
	total := len(set)
	out := make([]CleanedPage, total)

	workers := s.Workers
	if workers < 1 {
		workers = 1
	}

	for i, page := range set {
		if page.Index != i {
			return nil, fmt.Errorf("page set out of order: position %d holds index %d", i, page.Index)
		}
	}

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)

	for i, page := range set {
		i, page := i, page
		eg.Go(func() error {
			cleaned, err := s.Clean(gctx, page, total)
			if err != nil {
				return err
			}
			out[i] = cleaned
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
