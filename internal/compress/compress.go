// Package compress shrinks the raster images embedded in a PDF by
// downscaling and re-encoding them as JPEG. Page count and page order are
// preserved and the text layer is not touched.
package compress

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
)

const (
	DefaultScaleFactor = 0.5
	DefaultQuality     = 25
)

// ErrInvalidParameter is returned for a scale factor outside (0, 1] or a
// quality outside [1, 100].
var ErrInvalidParameter = errors.New("invalid recompression parameter")

// Stats summarizes one recompression run.
type Stats struct {
	Pages      int
	Images     int
	Replaced   int
	Skipped    int
	InputSize  int64
	OutputSize int64
}

// Recompressor rewrites image objects of a PDF.
type Recompressor struct {
	Log zerolog.Logger
}

// Validate checks scale and quality.
func Validate(scale float64, quality int) error {
	if !(scale > 0 && scale <= 1) {
		return fmt.Errorf("%w: scale factor %v must be in (0, 1]", ErrInvalidParameter, scale)
	}
	if quality < 1 || quality > 100 {
		return fmt.Errorf("%w: quality %d must be in [1, 100]", ErrInvalidParameter, quality)
	}
	return nil
}

// Recompress reads the PDF at in and writes a copy with every decodable
// image scaled by scale and JPEG-encoded at quality to out. An image is
// only replaced when the new encoding is smaller than the original. in and
// out may name the same file.
func (r *Recompressor) Recompress(ctx context.Context, in, out string, scale float64, quality int) (Stats, error) {
	var stats Stats
	if err := Validate(scale, quality); err != nil {
		return stats, err
	}

	info, err := os.Stat(in)
	if err != nil {
		return stats, fmt.Errorf("stat input: %w", err)
	}
	stats.InputSize = info.Size()

	f, err := os.Open(in)
	if err != nil {
		return stats, fmt.Errorf("open input: %w", err)
	}
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	pdfCtx, err := api.ReadValidateAndOptimize(f, conf)
	f.Close()
	if err != nil {
		return stats, fmt.Errorf("read pdf %s: %w", in, err)
	}
	stats.Pages = pdfCtx.PageCount

	seen := map[int]bool{}
	for pageNr := 1; pageNr <= pdfCtx.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		images, err := pdfcpu.ExtractPageImages(pdfCtx, pageNr, false)
		if err != nil {
			return stats, fmt.Errorf("extract images of page %d: %w", pageNr, err)
		}

		objNrs := make([]int, 0, len(images))
		for objNr := range images {
			objNrs = append(objNrs, objNr)
		}
		sort.Ints(objNrs)

		for _, objNr := range objNrs {
			// shared image objects are rewritten once
			if seen[objNr] {
				continue
			}
			seen[objNr] = true
			stats.Images++

			replaced, err := r.recompressImage(pdfCtx, images[objNr], scale, quality)
			if err != nil {
				return stats, fmt.Errorf("page %d image %d: %w", pageNr, objNr, err)
			}
			if replaced {
				stats.Replaced++
			} else {
				stats.Skipped++
			}
		}
	}

	size, err := writeAtomic(pdfCtx, out, stats.Pages)
	if err != nil {
		return stats, err
	}
	stats.OutputSize = size

	r.Log.Info().
		Int("pages", stats.Pages).
		Int("images", stats.Images).
		Int("replaced", stats.Replaced).
		Int64("input_size", stats.InputSize).
		Int64("output_size", stats.OutputSize).
		Msg("PDF images recompressed")
	return stats, nil
}

func (r *Recompressor) recompressImage(pdfCtx *model.Context, img model.Image, scale float64, quality int) (bool, error) {
	original, err := io.ReadAll(img)
	if err != nil {
		return false, err
	}

	decoded, _, err := image.Decode(bytes.NewReader(original))
	if err != nil {
		r.Log.Debug().
			Err(err).
			Int("obj", img.ObjNr).
			Str("type", img.FileType).
			Msg("Leaving undecodable image untouched")
		return false, nil
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Scale(decoded, scale), &jpeg.Options{Quality: quality}); err != nil {
		return false, fmt.Errorf("encode jpeg: %w", err)
	}

	if buf.Len() >= len(original) {
		r.Log.Debug().
			Int("obj", img.ObjNr).
			Int("original", len(original)).
			Int("encoded", buf.Len()).
			Msg("Keeping original image, re-encoding is larger")
		return false, nil
	}

	if err := replaceImage(pdfCtx, img.ObjNr, &buf); err != nil {
		return false, fmt.Errorf("replace image: %w", err)
	}
	return true, nil
}

// replaceImage swaps the image XObject objNr for the encoded image in r.
// The replacement may have fewer pixels than the original; the page content
// keeps drawing it into the same placement.
func replaceImage(pdfCtx *model.Context, objNr int, r io.Reader) error {
	sd, _, _, err := model.CreateImageStreamDict(pdfCtx.XRefTable, r, false, false)
	if err != nil {
		return err
	}
	entry, ok := pdfCtx.FindTableEntry(objNr, 0)
	if !ok || entry.Object == nil {
		return fmt.Errorf("image object %d not found", objNr)
	}
	entry.Object = *sd
	return nil
}

// Scale resamples src by factor with Catmull-Rom interpolation. Grayscale
// sources stay grayscale. Each dimension is at least one pixel.
func Scale(src image.Image, factor float64) image.Image {
	b := src.Bounds()
	w := max(1, int(float64(b.Dx())*factor+0.5))
	h := max(1, int(float64(b.Dy())*factor+0.5))
	rect := image.Rect(0, 0, w, h)

	var dst draw.Image
	switch src.(type) {
	case *image.Gray, *image.Gray16:
		dst = image.NewGray(rect)
	default:
		dst = image.NewRGBA(rect)
	}
	draw.CatmullRom.Scale(dst, rect, src, b, draw.Src, nil)
	return dst
}

func writeAtomic(pdfCtx *model.Context, out string, wantPages int) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(out), ".compress-*.pdf")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()

	ok := false
	defer func() {
		if !ok {
			os.Remove(tmpPath)
		}
	}()

	if err := api.WriteContextFile(pdfCtx, tmpPath); err != nil {
		return 0, fmt.Errorf("write pdf: %w", err)
	}

	pageCount, err := api.PageCountFile(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("verify pdf: %w", err)
	}
	if pageCount != wantPages {
		return 0, fmt.Errorf("page count changed from %d to %d", wantPages, pageCount)
	}

	info, err := os.Stat(tmpPath)
	if err != nil {
		return 0, err
	}
	if err := os.Rename(tmpPath, out); err != nil {
		return 0, fmt.Errorf("move output: %w", err)
	}
	ok = true
	return info.Size(), nil
}
