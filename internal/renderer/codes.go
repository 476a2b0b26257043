package renderer

import (
	"fmt"
	"image"

	"github.com/boombuler/barcode"
	"github.com/skip2/go-qrcode"
)

// RenderQR draws payload as a QR symbol size dots square, medium error
// correction, with the standard quiet zone.
func RenderQR(payload string, size int) (image.Image, error) {
	qr, err := qrcode.New(payload, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code: %w", err)
	}
	return qr.Image(size), nil
}

// RenderBarcode scales a symbol to fit width and draws its human readable
// content underneath. A symbol with more modules than width dots keeps one
// dot per module.
func RenderBarcode(bc barcode.Barcode, width, height int) (image.Image, error) {
	if height <= 0 {
		height = 80
	}

	target := width
	if modules := bc.Bounds().Dx(); modules > target {
		target = modules
	}

	scaled, err := barcode.Scale(bc, target, height)
	if err != nil {
		return nil, fmt.Errorf("failed to scale barcode: %w", err)
	}

	label := RenderText(bc.Content(), target, TextStyle{FontSize: 14, Align: "center"})
	return Stack(2, scaled, label), nil
}
