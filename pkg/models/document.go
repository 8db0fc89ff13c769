package models

import "time"

// Document describes a converted document as reported to callers.
type Document struct {
	// Identity
	RunID  string `json:"run_id"` // Pipeline run that produced the document
	Source string `json:"source"` // Input directory or PDF
	Output string `json:"output"` // Final PDF path, dated when renamed

	// Content
	Pages int `json:"pages"` // Page count of the final PDF

	// Dates
	Date     *time.Time `json:"date,omitempty"`      // Detected document date (nil if none found)
	DateText string     `json:"date_text,omitempty"` // Text the date was parsed from
	Renamed  bool       `json:"renamed"`             // Whether Output carries the date

	// Sizes in bytes
	IntermediateSize int64 `json:"intermediate_size_bytes"` // Assembled PDF before OCR
	OutputSize       int64 `json:"output_size_bytes"`       // Final PDF

	ProcessingDuration time.Duration `json:"processing_duration"`
}

// DateString returns the detected date as YYYY-MM-DD, or "" when none was found.
func (d Document) DateString() string {
	if d.Date == nil {
		return ""
	}
	return d.Date.Format(time.DateOnly)
}
