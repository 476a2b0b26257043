package renderer

import "fmt"

// Dither algorithm names accepted in Options.Dither
const (
	DitherFloydSteinberg = "floyd-steinberg"
	DitherAtkinson       = "atkinson"
	DitherStucki         = "stucki"
	DitherBayer          = "bayer"
)

// DefaultMaxWidth is the print width in dots when none is configured
const DefaultMaxWidth = 160

// Options controls the image pipeline
type Options struct {
	// MaxWidth is the output width in dots. Sources are always resized to it,
	// upscaling narrow images.
	MaxWidth int
	// Contrast is a percentage in [-100, 100]; 0 leaves the image unchanged
	Contrast float64
	// Brightness is added to every luminance value, clamped to [0, 255]
	Brightness int
	// Dither selects the two-level conversion; empty means Floyd-Steinberg
	Dither string
}

// DefaultOptions returns the options used when nothing is configured
func DefaultOptions() Options {
	return Options{
		MaxWidth: DefaultMaxWidth,
		Dither:   DitherFloydSteinberg,
	}
}

// Validate reports options the pipeline cannot run with
func (o Options) Validate() error {
	if o.MaxWidth <= 0 {
		return fmt.Errorf("max width must be positive, got %d", o.MaxWidth)
	}
	switch o.Dither {
	case "", DitherFloydSteinberg, DitherAtkinson, DitherStucki, DitherBayer:
	default:
		return fmt.Errorf("unknown dither algorithm %q", o.Dither)
	}
	return nil
}
