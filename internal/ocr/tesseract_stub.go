//go:build !tesseract

package ocr

import "context"

// TesseractRecognizer is the stub used when the "tesseract" build tag is
// not set. Recognize always returns ErrTesseractNotEnabled.
type TesseractRecognizer struct {
	Language string
	Pages    int
}

func (t *TesseractRecognizer) Recognize(context.Context, Document) ([]string, error) {
	return nil, NewError("Recognize", ErrTesseractNotEnabled, "")
}
