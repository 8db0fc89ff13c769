// Package levels whitens scanned pages by stretching the dark end of their
// intensity histogram.
//
// Paper scans are dominated by a light, often tinted background. Clamping
// every pixel into the band between the 1st and 8th cumulative percentile
// and stretching that band to the full 0..255 range pushes the background
// to pure white while keeping ink dark, without a fixed global threshold.
package levels

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

const (
	// LowCumulative is the cumulative share of pixels at or below the
	// black point.
	LowCumulative = 0.01
	// HighCumulative is the cumulative share of pixels at or below the
	// white point.
	HighCumulative = 0.08
)

// ErrDegenerateImage is returned by AdjustStrict when the clamp range
// collapses to a single intensity.
var ErrDegenerateImage = errors.New("degenerate image: clamp range collapses to a single intensity")

// Thresholds are the clamp bounds derived from a page's histogram.
type Thresholds struct {
	Low  uint8
	High uint8
}

// Degenerate reports whether the clamp range is a single point.
func (t Thresholds) Degenerate() bool {
	return t.High <= t.Low
}

// Adjust converts src to grayscale and stretches its levels. A degenerate
// page (for example a blank sheet) yields a uniformly white image.
func Adjust(src image.Image) (*image.Gray, Thresholds) {
	gray := Grayscale(src)
	th := ComputeThresholds(Histogram(gray))
	return apply(gray, th), th
}

// AdjustStrict is Adjust but fails with ErrDegenerateImage instead of
// emitting a uniform page.
func AdjustStrict(src image.Image) (*image.Gray, Thresholds, error) {
	out, th := Adjust(src)
	if th.Degenerate() {
		return nil, th, fmt.Errorf("%w (low=%d high=%d)", ErrDegenerateImage, th.Low, th.High)
	}
	return out, th, nil
}

// Grayscale returns a single-channel copy of img. An *image.Gray input is
// returned unchanged.
func Grayscale(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := gray.Pix[(y-b.Min.Y)*gray.Stride:]
		for x := b.Min.X; x < b.Max.X; x++ {
			row[x-b.Min.X] = color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y
		}
	}
	return gray
}

// Histogram counts pixels per intensity.
func Histogram(g *image.Gray) [256]int {
	var hist [256]int
	b := g.Bounds()
	for y := 0; y < b.Dy(); y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+b.Dx()]
		for _, v := range row {
			hist[v]++
		}
	}
	return hist
}

// ComputeThresholds finds the smallest intensities whose normalized
// cumulative count reaches LowCumulative and HighCumulative.
func ComputeThresholds(hist [256]int) Thresholds {
	total := 0
	for _, n := range hist {
		total += n
	}
	if total == 0 {
		return Thresholds{}
	}

	th := Thresholds{Low: 255, High: 255}
	foundLow := false
	cum := 0
	for i, n := range hist {
		cum += n
		share := float64(cum) / float64(total)
		if !foundLow && share >= LowCumulative {
			th.Low = uint8(i)
			foundLow = true
		}
		if share >= HighCumulative {
			th.High = uint8(i)
			break
		}
	}
	return th
}

func apply(g *image.Gray, th Thresholds) *image.Gray {
	b := g.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))

	if th.Degenerate() {
		for i := range out.Pix {
			out.Pix[i] = 255
		}
		return out
	}

	var lut [256]uint8
	span := int(th.High) - int(th.Low)
	for v := 0; v < 256; v++ {
		c := v
		if c < int(th.Low) {
			c = int(th.Low)
		}
		if c > int(th.High) {
			c = int(th.High)
		}
		lut[v] = uint8((c - int(th.Low)) * 255 / span)
	}

	for y := 0; y < b.Dy(); y++ {
		src := g.Pix[y*g.Stride : y*g.Stride+b.Dx()]
		dst := out.Pix[y*out.Stride : y*out.Stride+b.Dx()]
		for x, v := range src {
			dst[x] = lut[v]
		}
	}
	return out
}
