// Package printformat defines the JSON document accepted by the relay's
// /print endpoint and websocket "print" event.
package printformat

// Version is the only supported document version
const Version = "1.0"

// Document kinds
const (
	KindText    = "text"
	KindImage   = "image"
	KindSticker = "sticker"
	KindQRCode  = "qrcode"
	KindBarcode = "barcode"
)

// Document is a single print request
type Document struct {
	Version string `json:"version"`
	Kind    string `json:"kind"`

	// text
	Text string `json:"text,omitempty"`

	// image and sticker
	FileID   string `json:"file_id,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Animated bool   `json:"animated,omitempty"`

	// qrcode and barcode
	Symbology string `json:"symbology,omitempty"`
	Payload   string `json:"payload,omitempty"`
}
