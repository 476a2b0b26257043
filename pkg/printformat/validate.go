package printformat

import (
	"fmt"
	"strings"
)

// Validate checks the document structure: version, kind and the fields the
// kind requires.
func Validate(d *Document) error {
	if d.Version == "" {
		return fmt.Errorf("version is required")
	}
	if d.Version != Version {
		return fmt.Errorf("unsupported version: %s (expected %s)", d.Version, Version)
	}

	switch d.Kind {
	case "":
		return fmt.Errorf("kind is required")
	case KindText:
		if strings.TrimSpace(d.Text) == "" {
			return fmt.Errorf("text: 'text' is required")
		}
	case KindImage, KindSticker:
		if d.FileID == "" {
			return fmt.Errorf("%s: 'file_id' is required", d.Kind)
		}
		if d.Kind == KindImage && d.Animated {
			return fmt.Errorf("image: 'animated' only applies to stickers")
		}
	case KindQRCode:
		if d.Payload == "" {
			return fmt.Errorf("qrcode: 'payload' is required")
		}
	case KindBarcode:
		if d.Symbology == "" {
			return fmt.Errorf("barcode: 'symbology' is required")
		}
		if d.Payload == "" {
			return fmt.Errorf("barcode: 'payload' is required")
		}
	default:
		return fmt.Errorf("unknown kind '%s' (must be text, image, sticker, qrcode or barcode)", d.Kind)
	}

	return nil
}
