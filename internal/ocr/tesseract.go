//go:build tesseract

package ocr

import (
	"context"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// TesseractRecognizer runs Tesseract in-process over the cleaned page
// images. It requires the tesseract development libraries and the
// "tesseract" build tag:
//
//	go build -tags tesseract
type TesseractRecognizer struct {
	// Language is a Tesseract language list such as "deu+eng".
	Language string
	// Pages is the number of leading pages to recognize. Zero means all.
	Pages int
}

// Recognize returns the text of each selected page image.
func (t *TesseractRecognizer) Recognize(ctx context.Context, doc Document) ([]string, error) {
	const op = "Recognize"

	client := gosseract.NewClient()
	defer client.Close()

	if t.Language != "" {
		if err := client.SetLanguage(strings.Split(t.Language, "+")...); err != nil {
			return nil, WrapError(op, err, "set tesseract language")
		}
	}

	images := doc.PageImages
	if t.Pages > 0 && len(images) > t.Pages {
		images = images[:t.Pages]
	}

	texts := make([]string, 0, len(images))
	for _, path := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := client.SetImage(path); err != nil {
			return nil, WrapError(op, err, path)
		}
		text, err := client.Text()
		if err != nil {
			return nil, NewError(op, ErrRecognitionFailed, err.Error())
		}
		texts = append(texts, text)
	}
	return texts, nil
}
