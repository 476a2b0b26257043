package renderer

import (
	"image"
	"math"
	"strings"
)

// TextStyle configures raster text
type TextStyle struct {
	FontPath string  // TTF file; system fonts are tried when empty
	FontSize float64 // points
	Align    string  // left, center, right
}

const textMargin = 4

// RenderText draws text word-wrapped to width. It is used for content the
// printer's built-in code page cannot show.
func RenderText(text string, width int, style TextStyle) image.Image {
	if style.FontSize <= 0 {
		style.FontSize = 24
	}
	face := loadFace(style.FontPath, style.FontSize)

	measure := newCanvas(width, 1)
	if face != nil {
		measure.SetFontFace(face)
	}

	var lines []string
	for _, para := range strings.Split(text, "\n") {
		wrapped := measure.WordWrap(para, float64(width-2*textMargin))
		if len(wrapped) == 0 {
			wrapped = []string{""}
		}
		lines = append(lines, wrapped...)
	}

	lineHeight := measure.FontHeight() * 1.3
	height := int(math.Ceil(float64(len(lines))*lineHeight)) + 2*textMargin

	dc := newCanvas(width, height)
	if face != nil {
		dc.SetFontFace(face)
	}

	for i, line := range lines {
		y := float64(textMargin) + float64(i)*lineHeight + measure.FontHeight()
		switch style.Align {
		case "center":
			dc.DrawStringAnchored(line, float64(width)/2, y, 0.5, 0)
		case "right":
			dc.DrawStringAnchored(line, float64(width-textMargin), y, 1, 0)
		default:
			dc.DrawString(line, textMargin, y)
		}
	}

	return dc.Image()
}

// IsPlainASCII reports whether text can be printed with the printer's
// built-in font
func IsPlainASCII(text string) bool {
	for _, r := range text {
		if r > 0x7e || (r < 0x20 && r != '\n' && r != '\t') {
			return false
		}
	}
	return true
}
