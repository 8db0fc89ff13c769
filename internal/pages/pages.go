// Package pages discovers the page images of a document and puts them in
// natural order, so that "page2" sorts before "page10".
package pages

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/facette/natsort"
	"github.com/rs/zerolog"

	"doclean/internal/imagefile"
)

// ErrNoPagesFound is returned when the input holds no usable page images.
var ErrNoPagesFound = errors.New("no pages found")

// ColorMode describes the channel layout of a page image.
type ColorMode int

const (
	ModeUnknown ColorMode = iota
	ModeGray
	ModeRGB
)

func (m ColorMode) String() string {
	switch m {
	case ModeGray:
		return "gray"
	case ModeRGB:
		return "rgb"
	default:
		return "unknown"
	}
}

// Page is one raster page of the document.
type Page struct {
	// Index is the page's ordinal position, starting at 0.
	Index int
	// Path is the image file on disk.
	Path string
}

// Name is the file name of the page's source image.
func (p Page) Name() string {
	return filepath.Base(p.Path)
}

// Load decodes the page image and reports its color mode.
func (p Page) Load() (image.Image, ColorMode, error) {
	img, err := imagefile.Load(p.Path)
	if err != nil {
		return nil, ModeUnknown, err
	}
	return img, modeOf(img), nil
}

// Set is an ordered sequence of pages. Page i has Index i.
type Set []Page

// Paths returns the page image paths in order.
func (s Set) Paths() []string {
	paths := make([]string, len(s))
	for i, p := range s {
		paths[i] = p.Path
	}
	return paths
}

// Collector gathers the pages of a document.
type Collector struct {
	// Extensions overrides the accepted image extensions. Nil means
	// imagefile.Extensions.
	Extensions []string
	// ExtractDir receives page images pulled out of a PDF input.
	ExtractDir string
	Log        zerolog.Logger
}

// Collect returns the pages of source, which is either a directory of page
// images or a PDF whose embedded images become the pages.
func (c *Collector) Collect(ctx context.Context, source string) (Set, error) {
	info, err := os.Stat(source)
	if err != nil {
		return nil, fmt.Errorf("stat input: %w", err)
	}

	var set Set
	if info.IsDir() {
		set, err = c.fromDirectory(source)
	} else if strings.EqualFold(filepath.Ext(source), ".pdf") {
		if c.ExtractDir == "" {
			return nil, fmt.Errorf("collect %s: no directory configured for extracted pages", source)
		}
		set, err = ExtractImagesStrict(ctx, source, c.ExtractDir, c.Log)
	} else {
		return nil, fmt.Errorf("collect %s: input must be a directory or a PDF file", source)
	}
	if err != nil {
		return nil, err
	}

	if len(set) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoPagesFound, source)
	}

	c.Log.Info().
		Str("source", source).
		Int("pages", len(set)).
		Msg("Collected pages")
	return set, nil
}

func (c *Collector) fromDirectory(dir string) (Set, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if !c.accepts(e.Name()) {
			c.Log.Debug().Str("file", e.Name()).Msg("Skipping non-image file")
			continue
		}
		names = append(names, e.Name())
	}

	SortNatural(names)

	set := make(Set, len(names))
	for i, name := range names {
		set[i] = Page{Index: i, Path: filepath.Join(dir, name)}
	}
	return set, nil
}

func (c *Collector) accepts(name string) bool {
	if c.Extensions == nil {
		return imagefile.Supported(name)
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range c.Extensions {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

// SortNatural orders names so that embedded numbers compare by value.
// Ties fall back to plain string order so the result is deterministic.
func SortNatural(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		a, b := names[i], names[j]
		if natsort.Compare(a, b) {
			return true
		}
		if natsort.Compare(b, a) {
			return false
		}
		return a < b
	})
}

func modeOf(img image.Image) ColorMode {
	switch img.ColorModel() {
	case color.GrayModel, color.Gray16Model:
		return ModeGray
	}
	return ModeRGB
}
