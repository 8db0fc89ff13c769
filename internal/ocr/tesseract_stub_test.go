//go:build !tesseract

package ocr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTesseractStub(t *testing.T) {
	rec := &TesseractRecognizer{Language: "deu"}
	_, err := rec.Recognize(context.Background(), Document{PageImages: []string{"page.png"}})
	assert.ErrorIs(t, err, ErrTesseractNotEnabled)
}
