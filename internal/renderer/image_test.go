package renderer

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func uniform(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// gradient has a horizontal luminance ramp and a vertical alpha ramp
func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / (w - 1)),
				G: uint8((x * 7) % 256),
				B: uint8((x + y) % 256),
				A: uint8(y * 255 / (h - 1)),
			})
		}
	}
	return img
}

func TestProcess_TwoLevel(t *testing.T) {
	sources := map[string]image.Image{
		"gradient": gradient(97, 53),
		"gray":     uniform(50, 50, color.Gray{Y: 77}),
		"red":      uniform(30, 10, color.NRGBA{R: 255, A: 255}),
		"clear":    uniform(20, 20, color.NRGBA{}),
	}

	for name, src := range sources {
		for _, algo := range []string{DitherFloydSteinberg, DitherAtkinson, DitherStucki, DitherBayer} {
			opts := DefaultOptions()
			opts.Dither = algo
			bm, err := Process(encodePNG(t, src), opts)
			if err != nil {
				t.Fatalf("%s/%s: Process failed: %v", name, algo, err)
			}
			for y := 0; y < bm.Height; y++ {
				for x := 0; x < bm.Width; x++ {
					if g := bm.Gray(x, y); g != 0 && g != 255 {
						t.Fatalf("%s/%s: pixel %d,%d = %d, want 0 or 255", name, algo, x, y, g)
					}
				}
			}
		}
	}
}

func TestProcess_WidthAlwaysMaxWidth(t *testing.T) {
	cases := []struct {
		w, h     int
		maxWidth int
		wantH    int
	}{
		{320, 240, 160, 120}, // downscale
		{40, 30, 160, 120},   // upscale
		{160, 10, 160, 10},   // unchanged
		{384, 100, 384, 100},
	}

	for _, c := range cases {
		opts := DefaultOptions()
		opts.MaxWidth = c.maxWidth
		bm, err := Process(encodePNG(t, gradient(c.w, c.h)), opts)
		if err != nil {
			t.Fatalf("Process(%dx%d): %v", c.w, c.h, err)
		}
		if bm.Width != c.maxWidth {
			t.Errorf("%dx%d: width = %d, want %d", c.w, c.h, bm.Width, c.maxWidth)
		}
		if bm.Height != c.wantH {
			t.Errorf("%dx%d: height = %d, want %d", c.w, c.h, bm.Height, c.wantH)
		}
	}
}

func TestFlattenPixel(t *testing.T) {
	for l := 0; l <= 255; l++ {
		if got := FlattenPixel(uint8(l), 255); got != uint8(l) {
			t.Fatalf("opaque l=%d flattened to %d", l, got)
		}
		if got := FlattenPixel(uint8(l), 0); got != 255 {
			t.Fatalf("transparent l=%d flattened to %d, want 255", l, got)
		}
	}

	// half transparent black is mid gray
	if got := FlattenPixel(0, 128); got != 127 {
		t.Errorf("FlattenPixel(0, 128) = %d, want 127", got)
	}
}

func TestFlatten_OpaqueIsIdentity(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 16, 16))
	for i := range src.Pix {
		src.Pix[i] = uint8(i)
	}

	out := Flatten(src)
	if !bytes.Equal(out.Pix, src.Pix) {
		t.Error("flattening an opaque image changed its luminance")
	}
}

func TestFlatten_TransparentIsWhite(t *testing.T) {
	out := Flatten(uniform(8, 8, color.NRGBA{R: 10, G: 20, B: 30, A: 0}))
	for i, v := range out.Pix {
		if v != 255 {
			t.Fatalf("pixel %d = %d, want 255", i, v)
		}
	}
}

func TestProcess_Deterministic(t *testing.T) {
	src := encodePNG(t, gradient(123, 77))
	opts := DefaultOptions()
	opts.Contrast = 12.5
	opts.Brightness = -10

	first, err := Process(src, opts)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		again, err := Process(src, opts)
		if err != nil {
			t.Fatalf("Process failed: %v", err)
		}
		if !bytes.Equal(first.PNG, again.PNG) {
			t.Fatal("identical input produced different output")
		}
	}
}

func TestProcess_MidGrayEndToEnd(t *testing.T) {
	src := encodePNG(t, uniform(320, 240, color.NRGBA{R: 128, G: 128, B: 128, A: 255}))

	bm, err := Process(src, Options{MaxWidth: 160})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if bm.Width != 160 || bm.Height != 120 {
		t.Fatalf("size = %dx%d, want 160x120", bm.Width, bm.Height)
	}

	coverage := InkCoverage(bm.Image)
	if coverage < 0.45 || coverage > 0.55 {
		t.Errorf("ink coverage = %.3f, want about 0.5", coverage)
	}

	decoded, err := DecodeBitmap(bm.PNG)
	if err != nil {
		t.Fatalf("DecodeBitmap failed: %v", err)
	}
	if decoded.Width != bm.Width || decoded.Height != bm.Height {
		t.Fatalf("decoded size = %dx%d", decoded.Width, decoded.Height)
	}
	for y := 0; y < bm.Height; y++ {
		for x := 0; x < bm.Width; x++ {
			if decoded.Gray(x, y) != bm.Gray(x, y) {
				t.Fatalf("pixel %d,%d differs after round trip", x, y)
			}
		}
	}
}

func TestProcess_DecodeErrors(t *testing.T) {
	for name, src := range map[string][]byte{
		"empty":     nil,
		"garbage":   []byte("definitely not an image"),
		"truncated": encodePNG(t, gradient(20, 20))[:40],
	} {
		_, err := Process(src, DefaultOptions())
		if !errors.Is(err, ErrDecode) {
			t.Errorf("%s: expected ErrDecode, got %v", name, err)
		}
	}
}

func TestProcess_InvalidOptions(t *testing.T) {
	src := encodePNG(t, gradient(20, 20))
	if _, err := Process(src, Options{MaxWidth: 0}); err == nil {
		t.Error("expected error for zero max width")
	}
	if _, err := Process(src, Options{MaxWidth: 8, Dither: "halftone"}); err == nil {
		t.Error("expected error for unknown dither")
	}
}

func TestNewPreprocessor_DefaultsBadWidth(t *testing.T) {
	p := NewPreprocessor(Options{MaxWidth: -5}, nil)
	if p.Options().MaxWidth != DefaultMaxWidth {
		t.Errorf("max width = %d, want %d", p.Options().MaxWidth, DefaultMaxWidth)
	}
}

func TestAdjust(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 4, 1))
	copy(src.Pix, []uint8{0, 100, 200, 250})

	if out := Adjust(src, 0, 0); out != src {
		t.Error("zero adjustment should return the input")
	}

	out := Adjust(src, 0, 20)
	want := []uint8{20, 120, 220, 255}
	if !bytes.Equal(out.Pix, want) {
		t.Errorf("brightness +20 = %v, want %v", out.Pix, want)
	}

	out = Adjust(src, 50, 0)
	if out.Pix[0] > src.Pix[0] || out.Pix[3] < src.Pix[3] {
		t.Errorf("contrast should push extremes apart: %v", out.Pix)
	}
}

func TestDither_Deterministic(t *testing.T) {
	gray := Flatten(gradient(64, 64))
	for _, algo := range []string{DitherFloydSteinberg, DitherAtkinson, DitherStucki, DitherBayer} {
		a, err := Dither(gray, algo)
		if err != nil {
			t.Fatalf("%s: %v", algo, err)
		}
		b, _ := Dither(gray, algo)
		if !bytes.Equal(a.Pix, b.Pix) {
			t.Errorf("%s is not deterministic", algo)
		}
	}

	if _, err := Dither(gray, "nope"); err == nil {
		t.Error("expected error for unknown algorithm")
	}
}

func TestPadToBytes(t *testing.T) {
	img := image.NewPaletted(image.Rect(0, 0, 13, 5), Palette)
	for i := range img.Pix {
		img.Pix[i] = 1
	}
	img.SetColorIndex(0, 0, 0)
	img.SetColorIndex(12, 4, 0)

	padded := PadToBytes(img)
	if b := padded.Bounds(); b.Dx() != 16 || b.Dy() != 8 || b.Min != (image.Point{}) {
		t.Fatalf("padded bounds = %v, want 16x8 at origin", b)
	}
	if padded.ColorIndexAt(0, 0) != 0 || padded.ColorIndexAt(12, 4) != 0 {
		t.Error("Expected ink pixels to survive padding")
	}
	if padded.ColorIndexAt(5, 2) != 1 {
		t.Error("Expected paper pixels to stay paper")
	}
	for y := 0; y < 8; y++ {
		for x := 13; x < 16; x++ {
			if padded.ColorIndexAt(x, y) != 1 {
				t.Fatalf("Expected paper in the right margin at (%d,%d)", x, y)
			}
		}
	}
	for x := 0; x < 16; x++ {
		if padded.ColorIndexAt(x, 7) != 1 {
			t.Fatalf("Expected paper in the bottom margin at (%d,7)", x)
		}
	}

	aligned := image.NewPaletted(image.Rect(0, 0, 16, 8), Palette)
	if PadToBytes(aligned) != aligned {
		t.Error("Expected an aligned bitmap to be returned as is")
	}
}
