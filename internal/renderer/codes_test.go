package renderer

import (
	"testing"

	"github.com/boombuler/barcode/ean"
)

func TestRenderQR(t *testing.T) {
	img, err := RenderQR("https://example.com", 160)
	if err != nil {
		t.Fatalf("RenderQR failed: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 160 || b.Dy() != 160 {
		t.Errorf("QR size = %dx%d, want 160x160", b.Dx(), b.Dy())
	}
}

func TestRenderBarcode(t *testing.T) {
	bc, err := ean.Encode("5901234123457")
	if err != nil {
		t.Fatalf("ean.Encode failed: %v", err)
	}

	img, err := RenderBarcode(bc, 160, 60)
	if err != nil {
		t.Fatalf("RenderBarcode failed: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 160 {
		t.Errorf("barcode width = %d, want 160", b.Dx())
	}
	if b.Dy() <= 60 {
		t.Errorf("barcode height = %d, want room for the label", b.Dy())
	}

	// the raster goes through the same pipeline as photos
	bm, err := NewPreprocessor(Options{MaxWidth: 160}, nil).ProcessImage(img, "barcode")
	if err != nil {
		t.Fatalf("ProcessImage failed: %v", err)
	}
	if bm.Width != 160 {
		t.Errorf("bitmap width = %d", bm.Width)
	}
}

func TestRenderText(t *testing.T) {
	img := RenderText("hello world, this line is long enough to wrap at least once", 160, TextStyle{FontSize: 16})
	b := img.Bounds()
	if b.Dx() != 160 {
		t.Errorf("width = %d, want 160", b.Dx())
	}
	if b.Dy() <= 2*textMargin {
		t.Errorf("height = %d, expected text lines", b.Dy())
	}
}

func TestIsPlainASCII(t *testing.T) {
	if !IsPlainASCII("hello\nworld") {
		t.Error("plain text reported as non-ASCII")
	}
	if IsPlainASCII("héllo") || IsPlainASCII("こんにちは") {
		t.Error("non-ASCII text reported as plain")
	}
}

func TestStack(t *testing.T) {
	a := RenderText("a", 40, TextStyle{})
	b := RenderText("b", 80, TextStyle{})
	out := Stack(3, a, b)
	if out.Bounds().Dx() != 80 {
		t.Errorf("stack width = %d, want 80", out.Bounds().Dx())
	}
	if out.Bounds().Dy() != a.Bounds().Dy()+b.Bounds().Dy()+3 {
		t.Errorf("stack height = %d", out.Bounds().Dy())
	}
}
