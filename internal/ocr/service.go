// Package ocr adds a text layer to the assembled PDF and recovers the
// recognized text of each page.
//
// The heavy lifting is done by an external engine (ocrmypdf). The engine only
// reveals where it left its per-page text files through a line on its
// diagnostic stream, so that string scanning is isolated in ParseTempDir and
// the engine itself sits behind the Engine interface.
//
// Text used for date detection can come from three sources:
//   - sidecar: the engine's retained per-page *.txt files (default)
//   - vision: Google Cloud Vision document text detection on the final PDF
//   - tesseract: gosseract over the cleaned page images (build tag "tesseract")
//
// Required Environment Variables for the vision source:
//   - GOOGLE_APPLICATION_CREDENTIALS: Path to service account JSON file, OR
//   - GOOGLE_CREDENTIALS: Inline JSON credentials string
package ocr

import (
	"context"
	"strconv"
	"time"
)

// Engine runs OCR over a PDF. It writes out and returns the directory
// holding one recognized-text file per page.
type Engine interface {
	Run(ctx context.Context, in, out string, opts Options) (textDir string, err error)
}

// Options configure an OCR engine run.
type Options struct {
	// Language is the engine language code, e.g. "deu" or "deu+eng".
	Language string
	// Deskew straightens pages before recognition.
	Deskew bool
	// JBIG2Lossy allows lossy JBIG2 compression of bitonal images.
	JBIG2Lossy bool
	// Optimize is the engine's optimization level (0-3).
	Optimize int
	// PNGQuality is the raster quality used when optimizing PNG images.
	PNGQuality int
	// Timeout bounds a single engine run. Zero means unbounded.
	Timeout time.Duration
}

// DefaultOptions mirror the settings used for archiving German paperwork.
func DefaultOptions() Options {
	return Options{
		Language:   "deu",
		Deskew:     true,
		JBIG2Lossy: true,
		Optimize:   3,
		PNGQuality: 1,
	}
}

// Args renders the options as ocrmypdf command-line arguments. Temporary
// files are always retained because the per-page text is harvested from
// them afterwards.
func (o Options) Args(in, out string) []string {
	args := []string{
		"--language", o.Language,
		"--output-type", "pdf",
		"--optimize", strconv.Itoa(o.Optimize),
		"--png-quality", strconv.Itoa(o.PNGQuality),
		"--keep-temporary-files",
	}
	if o.Deskew {
		args = append(args, "--deskew")
	}
	if o.JBIG2Lossy {
		args = append(args, "--jbig2-lossy")
	}
	return append(args, in, out)
}

// Result is the outcome of an OCR stage run.
type Result struct {
	// OutputPath is the searchable PDF written by the engine.
	OutputPath string
	// TextDir is the engine-owned directory the page texts were read from.
	TextDir string
	// Pages holds the recognized text per page, in page order.
	Pages []string
	// Duration is how long the engine ran.
	Duration time.Duration
}

// FirstPage returns the text of the first page, or "" when none was found.
func (r *Result) FirstPage() string {
	if r == nil || len(r.Pages) == 0 {
		return ""
	}
	return r.Pages[0]
}

// Document describes what a TextRecognizer may read from.
type Document struct {
	// PDFPath is the final, searchable PDF.
	PDFPath string
	// TextDir is the engine's retained working directory.
	TextDir string
	// PageImages are the cleaned page images in page order.
	PageImages []string
}

// TextRecognizer produces per-page text for date detection.
type TextRecognizer interface {
	Recognize(ctx context.Context, doc Document) ([]string, error)
}
