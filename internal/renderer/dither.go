package renderer

import (
	"fmt"
	"image"
	"image/color"

	"github.com/makeworld-the-better-one/dither/v2"
	"golang.org/x/image/draw"
)

// Palette is the two-level print palette. Index 0 is ink, index 1 is paper.
var Palette = color.Palette{color.Black, color.White}

// Dither converts img to a two-level paletted image. Every algorithm is
// deterministic: the same pixels always give the same pattern.
//
// Floyd-Steinberg diffuses error on gamma-encoded values so mid-gray comes
// out near 50% ink. The alternatives come from the dither package, which
// works in linear light and prints darker midtones.
func Dither(img *image.Gray, algorithm string) (*image.Paletted, error) {
	switch algorithm {
	case "", DitherFloydSteinberg:
		dst := image.NewPaletted(img.Bounds(), Palette)
		draw.FloydSteinberg.Draw(dst, dst.Bounds(), img, img.Bounds().Min)
		return dst, nil
	case DitherAtkinson, DitherStucki, DitherBayer:
		d := dither.NewDitherer([]color.Color{color.Black, color.White})
		switch algorithm {
		case DitherAtkinson:
			d.Matrix = dither.Atkinson
		case DitherStucki:
			d.Matrix = dither.Stucki
		default:
			d.Mapper = dither.Bayer(4, 4, 1.0)
		}
		d.Serpentine = false
		return d.DitherPaletted(img), nil
	default:
		return nil, fmt.Errorf("unknown dither algorithm %q", algorithm)
	}
}

// InkCoverage returns the fraction of pixels that are black
func InkCoverage(img *image.Paletted) float64 {
	b := img.Bounds()
	total := b.Dx() * b.Dy()
	if total == 0 {
		return 0
	}
	ink := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if isInk(img.At(x, y)) {
				ink++
			}
		}
	}
	return float64(ink) / float64(total)
}

func isInk(c color.Color) bool {
	return color.GrayModel.Convert(c).(color.Gray).Y < 128
}
