package levels

import (
	"context"
	"image"
	"image/color"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doclean/internal/imagefile"
)

// scanLike builds a noisy bright page with a dark block of "ink".
func scanLike(w, h int, seed int64) *image.RGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(230 + rng.Intn(26))
			img.Set(x, y, color.RGBA{R: v, G: v, B: v - 5, A: 255})
		}
	}
	for y := h / 3; y < h/2; y++ {
		for x := w / 4; x < 3*w/4; x++ {
			v := uint8(rng.Intn(40))
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func minMax(g *image.Gray) (uint8, uint8) {
	lo, hi := uint8(255), uint8(0)
	for _, v := range g.Pix {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

func TestComputeThresholds(t *testing.T) {
	var hist [256]int
	hist[10] = 1   // 1%
	hist[20] = 7   // 8%
	hist[200] = 92 // rest

	th := ComputeThresholds(hist)
	assert.Equal(t, uint8(10), th.Low)
	assert.Equal(t, uint8(20), th.High)
	assert.False(t, th.Degenerate())
}

func TestComputeThresholdsEmptyHistogram(t *testing.T) {
	th := ComputeThresholds([256]int{})
	assert.True(t, th.Degenerate())
}

func TestAdjustSpansFullRange(t *testing.T) {
	out, th := Adjust(scanLike(200, 150, 1))

	require.False(t, th.Degenerate())
	lo, hi := minMax(out)
	assert.Equal(t, uint8(0), lo)
	assert.Equal(t, uint8(255), hi)
	assert.Equal(t, image.Rect(0, 0, 200, 150), out.Bounds())
}

func TestAdjustSecondPassStaysInRange(t *testing.T) {
	first, _ := Adjust(scanLike(120, 90, 2))
	second, _ := Adjust(first)

	lo, hi := minMax(second)
	assert.LessOrEqual(t, lo, hi)
	assert.Equal(t, first.Bounds(), second.Bounds())
}

func TestAdjustUniformImage(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 40, 30))
	for i := range src.Pix {
		src.Pix[i] = 128
	}

	out, th := Adjust(src)
	assert.True(t, th.Degenerate())
	for _, v := range out.Pix {
		require.Equal(t, uint8(255), v)
	}

	_, _, err := AdjustStrict(src)
	assert.ErrorIs(t, err, ErrDegenerateImage)
}

func TestAdjustHandlesOffsetBounds(t *testing.T) {
	full := scanLike(100, 100, 3)
	sub := full.SubImage(image.Rect(10, 10, 90, 90))

	out, _ := Adjust(sub)
	assert.Equal(t, image.Rect(0, 0, 80, 80), out.Bounds())
}

func TestAdjustFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "input.png")
	out := filepath.Join(dir, "output.png")
	require.NoError(t, imagefile.SavePNG(in, scanLike(160, 120, 4)))

	th, err := AdjustFile(context.Background(), in, out, zerolog.Nop())
	require.NoError(t, err)
	assert.False(t, th.Degenerate())

	img, err := imagefile.Load(out)
	require.NoError(t, err)
	assert.Equal(t, 160, img.Bounds().Dx())
}

func TestAdjustFileMissingInput(t *testing.T) {
	dir := t.TempDir()
	_, err := AdjustFile(context.Background(), filepath.Join(dir, "nope.png"), filepath.Join(dir, "out.png"), zerolog.Nop())
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "out.png"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestAdjustFileStrict(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "blank.png")
	out := filepath.Join(dir, "out.png")

	blank := image.NewGray(image.Rect(0, 0, 10, 10))
	for i := range blank.Pix {
		blank.Pix[i] = 128
	}
	require.NoError(t, imagefile.SavePNG(in, blank))

	_, err := AdjustFileStrict(context.Background(), in, out, zerolog.Nop())
	assert.ErrorIs(t, err, ErrDegenerateImage)
	assert.NoFileExists(t, out)

	th, err := AdjustFile(context.Background(), in, out, zerolog.Nop())
	require.NoError(t, err)
	assert.True(t, th.Degenerate())
	assert.FileExists(t, out)
}
