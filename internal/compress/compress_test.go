package compress

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doclean/internal/imagefile"
)

// scannedPDF builds a PDF of n noisy RGB pages, which compress poorly as
// lossless images.
func scannedPDF(t *testing.T, n int) string {
	t.Helper()
	dir := t.TempDir()
	rng := rand.New(rand.NewSource(1))

	var paths []string
	for i := 0; i < n; i++ {
		img := image.NewRGBA(image.Rect(0, 0, 300, 400))
		for y := 0; y < 400; y++ {
			for x := 0; x < 300; x++ {
				v := uint8(180 + rng.Intn(76))
				img.Set(x, y, color.RGBA{v, v - uint8(rng.Intn(20)), v, 255})
			}
		}
		path := filepath.Join(dir, fmt.Sprintf("page%d.png", i))
		require.NoError(t, imagefile.SavePNG(path, img))
		paths = append(paths, path)
	}

	out := filepath.Join(dir, "scan.pdf")
	require.NoError(t, api.ImportImagesFile(paths, out, pdfcpu.DefaultImportConfig(), model.NewDefaultConfiguration()))
	return out
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		scale   float64
		quality int
		wantErr bool
	}{
		{"defaults", DefaultScaleFactor, DefaultQuality, false},
		{"full scale", 1, 100, false},
		{"minimum quality", 0.1, 1, false},
		{"zero scale", 0, 25, true},
		{"negative scale", -0.5, 25, true},
		{"upscale", 1.5, 25, true},
		{"zero quality", 0.5, 0, true},
		{"quality too high", 0.5, 101, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.scale, tt.quality)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidParameter)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRecompressRejectsParametersBeforeIO(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.pdf")
	r := &Recompressor{Log: zerolog.Nop()}

	_, err := r.Recompress(context.Background(), filepath.Join(dir, "missing.pdf"), out, 2, 25)
	assert.ErrorIs(t, err, ErrInvalidParameter)
	assert.NoFileExists(t, out)
}

func TestRecompress(t *testing.T) {
	in := scannedPDF(t, 2)
	out := filepath.Join(t.TempDir(), "small.pdf")
	r := &Recompressor{Log: zerolog.Nop()}

	stats, err := r.Recompress(context.Background(), in, out, DefaultScaleFactor, DefaultQuality)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Pages)
	assert.Equal(t, 2, stats.Images)
	assert.Equal(t, 2, stats.Replaced)

	inInfo, err := os.Stat(in)
	require.NoError(t, err)
	outInfo, err := os.Stat(out)
	require.NoError(t, err)
	assert.Less(t, outInfo.Size(), inInfo.Size())
	assert.Equal(t, outInfo.Size(), stats.OutputSize)

	n, err := api.PageCountFile(out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for pageNr := 1; pageNr <= 2; pageNr++ {
		for _, img := range pageImages(t, out, pageNr) {
			assert.Equal(t, "jpg", img.FileType, "page %d", pageNr)
			cfg, _, err := image.DecodeConfig(img)
			require.NoError(t, err)
			assert.Equal(t, 150, cfg.Width, "page %d", pageNr)
			assert.Equal(t, 200, cfg.Height, "page %d", pageNr)
		}
	}
}

func pageImages(t *testing.T, path string, pageNr int) map[int]model.Image {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	pdfCtx, err := api.ReadValidateAndOptimize(f, model.NewDefaultConfiguration())
	require.NoError(t, err)
	images, err := pdfcpu.ExtractPageImages(pdfCtx, pageNr, false)
	require.NoError(t, err)
	require.Len(t, images, 1)
	return images
}

func TestRecompressInPlace(t *testing.T) {
	in := scannedPDF(t, 1)
	before, err := os.Stat(in)
	require.NoError(t, err)

	_, err = (&Recompressor{Log: zerolog.Nop()}).Recompress(context.Background(), in, in, DefaultScaleFactor, DefaultQuality)
	require.NoError(t, err)

	after, err := os.Stat(in)
	require.NoError(t, err)
	assert.LessOrEqual(t, after.Size(), before.Size())

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(in), ".compress-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestScale(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 101, 51))
	scaled := Scale(gray, 0.5)
	assert.IsType(t, &image.Gray{}, scaled)
	assert.Equal(t, image.Rect(0, 0, 51, 26), scaled.Bounds())

	tiny := Scale(image.NewRGBA(image.Rect(0, 0, 1, 1)), 0.1)
	assert.Equal(t, image.Rect(0, 0, 1, 1), tiny.Bounds())
	assert.IsType(t, &image.RGBA{}, tiny)
}
