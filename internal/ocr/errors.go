package ocr

import (
	"errors"
	"fmt"
)

// Common OCR stage errors
var (
	// ErrDiagnosticsParse is returned when the engine's diagnostic output does
	// not announce where it retained its temporary working files. The engine
	// documents that announcement, so its absence is a contract violation and
	// is never retried.
	ErrDiagnosticsParse = errors.New("engine diagnostics do not name the temporary working directory")

	// ErrEngineFailed is returned when the OCR engine process fails.
	ErrEngineFailed = errors.New("OCR engine failed")

	// ErrInvalidPDF is returned when the provided data is not a valid PDF document.
	ErrInvalidPDF = errors.New("invalid or corrupted PDF document")

	// ErrRecognitionFailed is returned when a text recognizer cannot produce text.
	ErrRecognitionFailed = errors.New("text recognition failed")

	// ErrMissingCredentials is returned when neither GOOGLE_APPLICATION_CREDENTIALS
	// nor GOOGLE_CREDENTIALS is configured for the vision text source.
	ErrMissingCredentials = errors.New("missing Google Cloud credentials: set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS environment variable")

	// ErrPDFTooLarge is returned when the PDF exceeds the Vision API's
	// synchronous size limit.
	ErrPDFTooLarge = errors.New("PDF file size exceeds the maximum limit (20MB)")

	// ErrTesseractNotEnabled is returned by the tesseract text source when the
	// binary was built without the "tesseract" build tag.
	ErrTesseractNotEnabled = errors.New("tesseract support not enabled; rebuild with -tags tesseract")
)

// Error wraps errors with additional context about the OCR stage failure.
type Error struct {
	// Op is the operation that failed (e.g., "Run", "ReadPageTexts").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("ocr: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("ocr: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new Error with the specified operation and underlying error.
func NewError(op string, err error, details string) *Error {
	return &Error{
		Op:      op,
		Err:     err,
		Details: details,
	}
}

// WrapError wraps an error as an *Error if it isn't already one.
func WrapError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var ocrErr *Error
	if errors.As(err, &ocrErr) {
		return err // Already wrapped
	}

	return NewError(op, err, details)
}
