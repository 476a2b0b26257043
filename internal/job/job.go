// Package job defines the closed set of print jobs the relay accepts
package job

import (
	"fmt"
	"strings"
)

// Job is one unit of printable content. The set of implementations is closed:
// Text, Image, Sticker, QRCode and Barcode.
type Job interface {
	// Kind returns the variant name used in records and events
	Kind() string
	// Summary returns a short human readable description for logs
	Summary() string

	isJob()
}

// Text prints a plain line of text
type Text struct {
	Content string
}

// Image prints a photo, optionally followed by a caption line
type Image struct {
	Source  string // file identifier resolved by a source.Fetcher
	Caption string
}

// Sticker prints a sticker image. Animated stickers are rejected.
type Sticker struct {
	Source   string
	Animated bool
}

// QRCode prints a QR symbol for Payload
type QRCode struct {
	Payload string
}

// Barcode prints a one-dimensional barcode
type Barcode struct {
	Symbology Symbology
	Payload   string
}

func (Text) Kind() string    { return "text" }
func (Image) Kind() string   { return "image" }
func (Sticker) Kind() string { return "sticker" }
func (QRCode) Kind() string  { return "qrcode" }
func (Barcode) Kind() string { return "barcode" }

func (Text) isJob()    {}
func (Image) isJob()   {}
func (Sticker) isJob() {}
func (QRCode) isJob()  {}
func (Barcode) isJob() {}

func (t Text) Summary() string {
	return fmt.Sprintf("text %q", truncate(t.Content, 24))
}

func (i Image) Summary() string {
	return "image " + ShortID(i.Source)
}

func (s Sticker) Summary() string {
	return "sticker " + ShortID(s.Source)
}

func (q QRCode) Summary() string {
	return fmt.Sprintf("qrcode %q", truncate(q.Payload, 24))
}

func (b Barcode) Summary() string {
	return fmt.Sprintf("barcode %s %q", b.Symbology, b.Payload)
}

// Validate checks everything about a job that can be known without fetching
// its content. Image sources are checked later when they are fetched.
func Validate(j Job) error {
	switch v := j.(type) {
	case Text:
		if strings.TrimSpace(v.Content) == "" {
			return fmt.Errorf("%w: text is empty", ErrInvalidPayload)
		}
	case Image:
		if v.Source == "" {
			return fmt.Errorf("%w: image source is empty", ErrInvalidPayload)
		}
	case Sticker:
		if v.Animated {
			return fmt.Errorf("%w: sticker needs to be static", ErrInvalidPayload)
		}
		if v.Source == "" {
			return fmt.Errorf("%w: sticker source is empty", ErrInvalidPayload)
		}
	case QRCode:
		return ValidateQR(v.Payload)
	case Barcode:
		return ValidatePayload(v.Symbology, v.Payload)
	case nil:
		return fmt.Errorf("%w: no job", ErrInvalidPayload)
	default:
		return fmt.Errorf("unsupported job type %T", j)
	}
	return nil
}

// ShortID returns the last 8 characters of a file identifier, used to tag
// log lines and temporary files.
func ShortID(fileID string) string {
	if len(fileID) <= 8 {
		return fileID
	}
	return fileID[len(fileID)-8:]
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
