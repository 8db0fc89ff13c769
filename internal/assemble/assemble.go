// Package assemble combines cleaned page images into a single PDF, one
// page per image, with no text layer and no further compression.
package assemble

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog"

	"doclean/internal/cleanup"
)

// ErrAssembly is returned when the page artifacts cannot be combined.
var ErrAssembly = errors.New("PDF assembly failed")

// Assembler writes the intermediate PDF.
type Assembler struct {
	Log zerolog.Logger
}

// Assemble writes pages, in ordinal order, into a new PDF at out. The page
// indices must form the sequence 0..n-1.
func (a *Assembler) Assemble(ctx context.Context, pages []cleanup.CleanedPage, out string) error {
	if len(pages) == 0 {
		return fmt.Errorf("%w: no cleaned pages", ErrAssembly)
	}

	ordered := make([]cleanup.CleanedPage, len(pages))
	copy(ordered, pages)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	paths := make([]string, len(ordered))
	for i, p := range ordered {
		if p.Index != i {
			return fmt.Errorf("%w: expected page %d, found page %d", ErrAssembly, i, p.Index)
		}
		f, err := os.Open(p.Path)
		if err != nil {
			return fmt.Errorf("%w: page %d: %w", ErrAssembly, p.Index, err)
		}
		f.Close()
		paths[i] = p.Path
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.Remove(out); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %w", ErrAssembly, err)
	}

	conf := model.NewDefaultConfiguration()
	if err := api.ImportImagesFile(paths, out, pdfcpu.DefaultImportConfig(), conf); err != nil {
		return fmt.Errorf("%w: %w", ErrAssembly, err)
	}

	pageCount, err := api.PageCountFile(out)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAssembly, err)
	}
	if pageCount != len(paths) {
		return fmt.Errorf("%w: wrote %d pages, expected %d", ErrAssembly, pageCount, len(paths))
	}

	a.Log.Info().
		Int("pages", pageCount).
		Str("output", out).
		Msg("Intermediate PDF assembled")
	return nil
}
