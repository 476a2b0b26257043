package renderer

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Bitmap is the pipeline output: a two-level raster and its PNG encoding.
// Width and height are recoverable from the PNG alone.
type Bitmap struct {
	Width  int
	Height int
	PNG    []byte
	Image  *image.Paletted
}

// NewBitmap encodes a two-level image. Any pixel that is not pure black or
// pure white is an ErrEncode.
func NewBitmap(img *image.Paletted) (*Bitmap, error) {
	if err := checkTwoLevel(img); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}

	b := img.Bounds()
	return &Bitmap{
		Width:  b.Dx(),
		Height: b.Dy(),
		PNG:    buf.Bytes(),
		Image:  img,
	}, nil
}

// DecodeBitmap re-reads an encoded bitmap
func DecodeBitmap(data []byte) (*Bitmap, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	pal, ok := img.(*image.Paletted)
	if !ok {
		b := img.Bounds()
		pal = image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()), Palette)
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				c := img.At(b.Min.X+x, b.Min.Y+y)
				switch color.GrayModel.Convert(c).(color.Gray).Y {
				case 0:
					pal.SetColorIndex(x, y, 0)
				case 255:
					pal.SetColorIndex(x, y, 1)
				default:
					return nil, fmt.Errorf("%w: pixel %d,%d is not black or white", ErrDecode, x, y)
				}
			}
		}
	}
	if err := checkTwoLevel(pal); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	return &Bitmap{
		Width:  pal.Bounds().Dx(),
		Height: pal.Bounds().Dy(),
		PNG:    data,
		Image:  pal,
	}, nil
}

// Gray returns the luminance of the pixel at x, y: 0 or 255
func (b *Bitmap) Gray(x, y int) uint8 {
	min := b.Image.Bounds().Min
	return color.GrayModel.Convert(b.Image.At(min.X+x, min.Y+y)).(color.Gray).Y
}

func checkTwoLevel(img *image.Paletted) error {
	for i, c := range img.Palette {
		y := color.GrayModel.Convert(c).(color.Gray).Y
		_, _, _, a := c.RGBA()
		if (y != 0 && y != 255) || a != 0xffff {
			return fmt.Errorf("%w: palette entry %d is not black or white", ErrEncode, i)
		}
	}
	return nil
}

// PadToBytes extends img with paper on the right and bottom so both sides
// are multiples of 8 dots, the unit of ESC/POS raster rows and bands. The
// result always starts at the origin.
func PadToBytes(img *image.Paletted) *image.Paletted {
	b := img.Bounds()
	w, h := roundUp8(b.Dx()), roundUp8(b.Dy())
	if w == b.Dx() && h == b.Dy() && b.Min == (image.Point{}) {
		return img
	}

	dst := image.NewPaletted(image.Rect(0, 0, w, h), Palette)
	for i := range dst.Pix {
		dst.Pix[i] = 1
	}
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			if r|g|bl == 0 {
				dst.SetColorIndex(x, y, 0)
			}
		}
	}
	return dst
}

func roundUp8(n int) int {
	return (n + 7) &^ 7
}
