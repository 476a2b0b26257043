// Package renderer turns source images, text and codes into two-level
// bitmaps a thermal print head can reproduce.
package renderer

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp"
)

var (
	// ErrDecode is returned when the source bytes are not a readable image
	ErrDecode = errors.New("decode error")
	// ErrEncode is returned when the bitmap cannot be serialised
	ErrEncode = errors.New("encode error")
)

// Preprocessor runs the image pipeline with fixed options
type Preprocessor struct {
	opts   Options
	logger *zap.Logger
}

// NewPreprocessor creates a preprocessor. Invalid options fall back to the
// defaults for the offending field.
func NewPreprocessor(opts Options, logger *zap.Logger) *Preprocessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxWidth <= 0 {
		logger.Warn("invalid max width, using default",
			zap.Int("max_width", opts.MaxWidth), zap.Int("default", DefaultMaxWidth))
		opts.MaxWidth = DefaultMaxWidth
	}
	if opts.Dither == "" {
		opts.Dither = DitherFloydSteinberg
	}
	return &Preprocessor{opts: opts, logger: logger.With(zap.String("component", "renderer"))}
}

// Options returns the options in effect
func (p *Preprocessor) Options() Options {
	return p.opts
}

// Process decodes src and runs it through the pipeline. tag identifies the
// source in log lines.
func (p *Preprocessor) Process(src []byte, tag string) (*Bitmap, error) {
	log := p.logger.With(zap.String("id", tag))

	log.Debug("decoding image", zap.Int("bytes", len(src)))
	img, err := Decode(src)
	if err != nil {
		log.Debug("decode failed", zap.Error(err))
		return nil, err
	}
	b := img.Bounds()
	log.Debug("decoded image", zap.Int("width", b.Dx()), zap.Int("height", b.Dy()))

	return p.run(img, log)
}

// ProcessImage runs an already decoded image through the pipeline
func (p *Preprocessor) ProcessImage(img image.Image, tag string) (*Bitmap, error) {
	return p.run(img, p.logger.With(zap.String("id", tag)))
}

func (p *Preprocessor) run(img image.Image, log *zap.Logger) (*Bitmap, error) {
	resized := Resize(img, p.opts.MaxWidth)
	log.Debug("resized image",
		zap.Int("width", resized.Bounds().Dx()), zap.Int("height", resized.Bounds().Dy()))

	gray := Flatten(resized)
	gray = Adjust(gray, p.opts.Contrast, p.opts.Brightness)
	log.Debug("adjusted image",
		zap.Float64("contrast", p.opts.Contrast), zap.Int("brightness", p.opts.Brightness))

	mono, err := Dither(gray, p.opts.Dither)
	if err != nil {
		return nil, err
	}
	log.Debug("dithered image", zap.String("algorithm", p.opts.Dither))

	bm, err := NewBitmap(mono)
	if err != nil {
		return nil, err
	}
	log.Debug("encoded bitmap", zap.Int("bytes", len(bm.PNG)))
	return bm, nil
}

// Process runs the pipeline on src with opts and no logging
func Process(src []byte, opts Options) (*Bitmap, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return NewPreprocessor(opts, nil).Process(src, "")
}

// Decode reads an image of any registered format (png, jpeg, gif, bmp, tiff,
// webp), applying EXIF orientation.
func Decode(src []byte) (image.Image, error) {
	if len(src) == 0 {
		return nil, fmt.Errorf("%w: empty source", ErrDecode)
	}
	img, err := imaging.Decode(bytes.NewReader(src), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, nil
}

// Resize scales img proportionally to width using Lanczos resampling.
// Narrow sources are upscaled.
func Resize(img image.Image, width int) *image.NRGBA {
	return imaging.Resize(img, width, 0, imaging.Lanczos)
}

// Flatten collapses luminance and alpha into an opaque gray image, so that
// transparent regions print as paper white.
func Flatten(img image.Image) *image.Gray {
	src := imaging.Clone(img)
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))

	for y := 0; y < b.Dy(); y++ {
		si := y * src.Stride
		di := y * dst.Stride
		for x := 0; x < b.Dx(); x++ {
			p := src.Pix[si : si+4 : si+4]
			dst.Pix[di] = FlattenPixel(luma(p[0], p[1], p[2]), p[3])
			si += 4
			di++
		}
	}
	return dst
}

// FlattenPixel computes 255 - (255 - l) * a / 255, rounded
func FlattenPixel(l, a uint8) uint8 {
	ink := (uint32(255-l)*uint32(a) + 127) / 255
	return uint8(255 - ink)
}

// luma uses the same weights as color.GrayModel on unpremultiplied values
func luma(r, g, b uint8) uint8 {
	y := (19595*uint32(r) + 38470*uint32(g) + 7471*uint32(b) + 1<<15) >> 16
	return uint8(y)
}

// Adjust applies contrast and then brightness. Zero values are skipped.
func Adjust(img *image.Gray, contrast float64, brightness int) *image.Gray {
	if contrast == 0 && brightness == 0 {
		return img
	}

	var out image.Image = img
	if contrast != 0 {
		out = imaging.AdjustContrast(out, contrast)
	}
	if brightness != 0 {
		out = imaging.AdjustFunc(out, func(c color.NRGBA) color.NRGBA {
			return color.NRGBA{
				R: clamp(int(c.R) + brightness),
				G: clamp(int(c.G) + brightness),
				B: clamp(int(c.B) + brightness),
				A: c.A,
			}
		})
	}
	return toGray(out)
}

func toGray(img image.Image) *image.Gray {
	src := imaging.Clone(img)
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			i := y*src.Stride + x*4
			dst.Pix[y*dst.Stride+x] = luma(src.Pix[i], src.Pix[i+1], src.Pix[i+2])
		}
	}
	return dst
}

func clamp(v int) uint8 {
	return uint8(math.Max(0, math.Min(255, float64(v))))
}
