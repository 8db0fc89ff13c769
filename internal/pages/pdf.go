package pages

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog"

	"doclean/internal/imagefile"
)

// ErrUndecodableImage is returned when a PDF page holds an image in a
// format the decoder does not know (JPEG 2000, JBIG2, CCITT).
var ErrUndecodableImage = errors.New("undecodable page image")

// ExtractImages writes every embedded raster image of the PDF at src into
// outDir as PNG, in page order and object order within a page, and returns
// them as a page set. Undecodable images are skipped with a warning.
func ExtractImages(ctx context.Context, src, outDir string, log zerolog.Logger) (Set, error) {
	return extractImages(ctx, src, outDir, false, log)
}

// ExtractImagesStrict is ExtractImages but fails with ErrUndecodableImage
// on the first image it cannot decode, naming its page.
func ExtractImagesStrict(ctx context.Context, src, outDir string, log zerolog.Logger) (Set, error) {
	return extractImages(ctx, src, outDir, true, log)
}

func extractImages(ctx context.Context, src, outDir string, strict bool, log zerolog.Logger) (Set, error) {
	f, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	pdfCtx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return nil, fmt.Errorf("read pdf %s: %w", src, err)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	var set Set
	for pageNr := 1; pageNr <= pdfCtx.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		images, err := pdfcpu.ExtractPageImages(pdfCtx, pageNr, false)
		if err != nil {
			return nil, fmt.Errorf("extract images of page %d: %w", pageNr, err)
		}

		set, err = savePageImages(set, pageNr, images, outDir, strict, log)
		if err != nil {
			return nil, err
		}
	}

	return set, nil
}

// savePageImages decodes the images of one page in object order and
// appends them to set.
func savePageImages(set Set, pageNr int, images map[int]model.Image, outDir string, strict bool, log zerolog.Logger) (Set, error) {
	objNrs := make([]int, 0, len(images))
	for objNr := range images {
		objNrs = append(objNrs, objNr)
	}
	sort.Ints(objNrs)

	for k, objNr := range objNrs {
		pdfImg := images[objNr]
		decoded, _, err := image.Decode(pdfImg.Reader)
		if err != nil {
			if strict {
				return nil, fmt.Errorf("page %d image %d (%s): %w: %v", pageNr, objNr, pdfImg.FileType, ErrUndecodableImage, err)
			}
			log.Warn().
				Err(err).
				Int("page", pageNr).
				Int("obj", objNr).
				Str("type", pdfImg.FileType).
				Msg("Skipping undecodable image")
			continue
		}

		path := filepath.Join(outDir, fmt.Sprintf("page-%04d-%02d.png", pageNr, k+1))
		if err := imagefile.SavePNG(path, decoded); err != nil {
			return nil, fmt.Errorf("save image of page %d: %w", pageNr, err)
		}
		log.Debug().Str("file", path).Int("page", pageNr).Msg("Saved image")

		set = append(set, Page{Index: len(set), Path: path})
	}
	return set, nil
}
