// Package imagefile loads and stores the raster formats the pipeline meets:
// scanner output (PNG, JPEG, TIFF) and unpaper output (PBM/PGM/PPM).
package imagefile

import (
	"bufio"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/spakin/netpbm"
	_ "golang.org/x/image/tiff"
)

// Extensions lists the page image extensions accepted as pipeline input.
var Extensions = []string{".png", ".jpg", ".jpeg", ".tiff", ".tif"}

// Supported reports whether path has one of the accepted extensions,
// compared case-insensitively.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Load decodes the image at path.
func Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	magic, err := br.Peek(2)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if isNetpbm(magic) {
		img, err := netpbm.Decode(br, nil)
		if err != nil {
			return nil, fmt.Errorf("decode netpbm %s: %w", path, err)
		}
		return img, nil
	}

	img, _, err := image.Decode(br)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// SavePNG encodes img as PNG at path. The file is written beside path
// and renamed into place so a failed write never leaves a truncated image.
func SavePNG(path string, img image.Image) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*.png")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(tmp, img); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("encode png %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// isNetpbm matches the P1..P7 magic numbers.
func isNetpbm(magic []byte) bool {
	return len(magic) == 2 && magic[0] == 'P' && magic[1] >= '1' && magic[1] <= '7'
}
