package levels

import (
	"context"
	"fmt"
	"image"

	"github.com/rs/zerolog"

	"doclean/internal/imagefile"
)

// AdjustFile whitens the image at in and writes the result to out as PNG.
func AdjustFile(ctx context.Context, in, out string, log zerolog.Logger) (Thresholds, error) {
	return adjustFile(ctx, in, out, false, log)
}

// AdjustFileStrict is AdjustFile but returns ErrDegenerateImage, and
// writes nothing, when the image has no tonal range.
func AdjustFileStrict(ctx context.Context, in, out string, log zerolog.Logger) (Thresholds, error) {
	return adjustFile(ctx, in, out, true, log)
}

func adjustFile(ctx context.Context, in, out string, strict bool, log zerolog.Logger) (Thresholds, error) {
	if err := ctx.Err(); err != nil {
		return Thresholds{}, err
	}

	src, err := imagefile.Load(in)
	if err != nil {
		log.Error().Err(err).Str("file", in).Msg("Cannot load image")
		return Thresholds{}, fmt.Errorf("load image: %w", err)
	}

	var adjusted *image.Gray
	var th Thresholds
	if strict {
		adjusted, th, err = AdjustStrict(src)
		if err != nil {
			return th, err
		}
	} else {
		adjusted, th = Adjust(src)
	}
	if err := imagefile.SavePNG(out, adjusted); err != nil {
		return th, fmt.Errorf("save adjusted image: %w", err)
	}

	ev := log.Debug()
	if th.Degenerate() {
		ev = log.Warn()
	}
	ev.Str("input", in).
		Str("output", out).
		Uint8("low", th.Low).
		Uint8("high", th.High).
		Bool("degenerate", th.Degenerate()).
		Msg("Levels adjusted")

	return th, nil
}
