package pipeline

import (
	"errors"
	"fmt"

	"doclean/internal/cleanup"
)

// Stage names used in StageError and log lines.
const (
	StageValidate = "validate"
	StageCollect  = "collect"
	StageCleanup  = "cleanup"
	StageAssemble = "assemble"
	StageOCR      = "ocr"
	StageCompress = "compress"
	StageOutput   = "output"
)

// StageError records which pipeline stage failed, and for per-page stages
// which page (1-based; 0 when the failure is not tied to a page).
type StageError struct {
	Stage string
	Page  int
	Err   error
}

func (e *StageError) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("%s stage failed on page %d: %v", e.Stage, e.Page, e.Err)
	}
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageError(stage string, err error) *StageError {
	se := &StageError{Stage: stage, Err: err}
	var cleanupErr *cleanup.Error
	if errors.As(err, &cleanupErr) {
		se.Page = cleanupErr.Index + 1
	}
	return se
}
