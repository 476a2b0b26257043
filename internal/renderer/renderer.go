package renderer

import (
	"image"
	"image/color"
	"os"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
)

// fallbackFonts are tried in order when no font is configured
var fallbackFonts = []string{
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/liberation/LiberationSans-Regular.ttf",
	"/System/Library/Fonts/Supplemental/Arial.ttf",
	"/System/Library/Fonts/Helvetica.ttc",
	"C:\\Windows\\Fonts\\arial.ttf",
}

// newCanvas returns a white canvas with black ink selected
func newCanvas(width, height int) *gg.Context {
	dc := gg.NewContext(width, height)
	dc.SetColor(color.White)
	dc.Clear()
	dc.SetColor(color.Black)
	return dc
}

// loadFace loads path at size points, falling back to the system fonts and
// finally to gg's built-in face (nil).
func loadFace(path string, size float64) font.Face {
	candidates := fallbackFonts
	if path != "" {
		candidates = append([]string{path}, fallbackFonts...)
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if face, err := gg.LoadFontFace(p, size); err == nil {
			return face
		}
	}
	return nil
}

// Stack draws images top to bottom, centred horizontally, on a canvas as
// wide as the widest image.
func Stack(gap int, images ...image.Image) image.Image {
	width, height := 0, 0
	for i, img := range images {
		b := img.Bounds()
		if b.Dx() > width {
			width = b.Dx()
		}
		height += b.Dy()
		if i > 0 {
			height += gap
		}
	}
	if width == 0 || height == 0 {
		return image.NewGray(image.Rect(0, 0, 1, 1))
	}

	dc := newCanvas(width, height)
	y := 0
	for _, img := range images {
		b := img.Bounds()
		dc.DrawImage(img, (width-b.Dx())/2, y)
		y += b.Dy() + gap
	}
	return dc.Image()
}
