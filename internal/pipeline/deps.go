package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"doclean/internal/config"
	"doclean/internal/ocr"
	"doclean/internal/runner"
)

// NewDeps wires the external tools and the configured text source for a
// run in language, falling back to the configured language when empty. The
// returned close function releases the text source's resources.
func NewDeps(ctx context.Context, c *config.Config, language string, log zerolog.Logger) (Deps, func() error, error) {
	if language == "" {
		language = c.Language
	}

	exec := runner.NewExec(log.With().Str("component", "runner").Logger())

	engine := ocr.NewOCRmyPDF(c.OCRmyPDFPath, exec, log.With().Str("component", "ocrmypdf").Logger())
	engine.Retries = c.Retries

	deps := Deps{Runner: exec, Engine: engine}
	closeFn := func() error { return nil }

	switch c.TextSource {
	case config.TextSourceSidecar, "":
		deps.Recognizer = ocr.SidecarRecognizer{}
	case config.TextSourceVision:
		vision, err := ocr.NewVisionRecognizer(ctx, c.GoogleCredentials, c.GoogleCredentialsFile)
		if err != nil {
			return Deps{}, nil, err
		}
		deps.Recognizer = vision
		closeFn = vision.Close
	case config.TextSourceTesseract:
		deps.Recognizer = &ocr.TesseractRecognizer{Language: language, Pages: 1}
	default:
		return Deps{}, nil, fmt.Errorf("unknown text source %q", c.TextSource)
	}

	return deps, closeFn, nil
}
