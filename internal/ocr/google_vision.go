package ocr

import (
	"context"
	"fmt"
	"os"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
)

const (
	// MaxFileSizeBytes is the maximum file size for synchronous processing (20MB)
	MaxFileSizeBytes = 20 * 1024 * 1024

	// MaxPagesSync is the maximum number of pages for synchronous processing
	MaxPagesSync = 5
)

// visionClient is the part of the Vision API client the recognizer uses.
type visionClient interface {
	BatchAnnotateFiles(ctx context.Context, req *visionpb.BatchAnnotateFilesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateFilesResponse, error)
	Close() error
}

// VisionRecognizer implements TextRecognizer using Google Cloud Vision API.
type VisionRecognizer struct {
	client visionClient
	// Pages is the number of leading pages to recognize, capped at MaxPagesSync.
	Pages int
}

// NewVisionRecognizer creates a recognizer from inline service account JSON
// or a credentials file, in that order, falling back to application default
// credentials when both are empty.
func NewVisionRecognizer(ctx context.Context, credJSON, credFile string) (*VisionRecognizer, error) {
	const op = "NewVisionRecognizer"

	var client *vision.ImageAnnotatorClient
	var err error

	if credJSON != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
		if err != nil {
			return nil, WrapError(op, err, "failed to create client with GOOGLE_CREDENTIALS")
		}
	} else if credFile != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsFile(credFile))
		if err != nil {
			return nil, WrapError(op, err, "failed to create client with GOOGLE_APPLICATION_CREDENTIALS")
		}
	} else {
		client, err = vision.NewImageAnnotatorClient(ctx)
		if err != nil {
			return nil, WrapError(op, ErrMissingCredentials, "no credentials configured")
		}
	}

	return &VisionRecognizer{client: client, Pages: 1}, nil
}

// newVisionRecognizerWithClient creates a recognizer with an explicit client (for testing).
func newVisionRecognizerWithClient(client visionClient, pages int) *VisionRecognizer {
	return &VisionRecognizer{client: client, Pages: pages}
}

// Recognize runs document text detection on the leading pages of the
// final PDF and returns one text per page.
func (g *VisionRecognizer) Recognize(ctx context.Context, doc Document) ([]string, error) {
	const op = "Recognize"

	pdfBytes, err := os.ReadFile(doc.PDFPath)
	if err != nil {
		return nil, WrapError(op, err, "failed to read PDF data")
	}

	if len(pdfBytes) > MaxFileSizeBytes {
		return nil, WrapError(op, ErrPDFTooLarge, fmt.Sprintf("file size: %d bytes", len(pdfBytes)))
	}

	if len(pdfBytes) < 4 || string(pdfBytes[:4]) != "%PDF" {
		return nil, WrapError(op, ErrInvalidPDF, "missing PDF header")
	}

	n := g.Pages
	if n <= 0 {
		n = 1
	}
	if n > MaxPagesSync {
		n = MaxPagesSync
	}
	pageNrs := make([]int32, n)
	for i := range pageNrs {
		pageNrs[i] = int32(i + 1)
	}

	req := &visionpb.BatchAnnotateFilesRequest{
		Requests: []*visionpb.AnnotateFileRequest{
			{
				InputConfig: &visionpb.InputConfig{
					Content:  pdfBytes,
					MimeType: "application/pdf",
				},
				Features: []*visionpb.Feature{
					{
						Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION,
					},
				},
				Pages: pageNrs,
			},
		},
	}

	resp, err := g.client.BatchAnnotateFiles(ctx, req)
	if err != nil {
		return nil, WrapError(op, ErrRecognitionFailed, fmt.Sprintf("Vision API call failed: %v", err))
	}

	if len(resp.Responses) == 0 {
		return nil, WrapError(op, ErrRecognitionFailed, "no response from Vision API")
	}

	fileResp := resp.Responses[0]
	if fileResp.Error != nil {
		return nil, WrapError(op, ErrRecognitionFailed, fmt.Sprintf("Vision API error: %s", fileResp.Error.Message))
	}

	return pageTexts(fileResp)
}

// pageTexts extracts the full text annotation of every page response.
func pageTexts(fileResp *visionpb.AnnotateFileResponse) ([]string, error) {
	texts := make([]string, 0, len(fileResp.Responses))
	for pageIdx, page := range fileResp.Responses {
		if page.Error != nil {
			return nil, fmt.Errorf("%w: page %d: %s", ErrRecognitionFailed, pageIdx+1, page.Error.Message)
		}
		var text string
		if page.FullTextAnnotation != nil {
			text = page.FullTextAnnotation.Text
		}
		texts = append(texts, text)
	}

	if strings.TrimSpace(strings.Join(texts, "")) == "" {
		return nil, NewError("Recognize", ErrRecognitionFailed, "document contains no readable text")
	}
	return texts, nil
}

// Close closes the underlying Vision client.
func (g *VisionRecognizer) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
