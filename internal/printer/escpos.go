package printer

import (
	"bytes"
	"fmt"
	"io"

	"github.com/hennedo/escpos"

	"github.com/thereceipt/receipt-relay/internal/job"
	"github.com/thereceipt/receipt-relay/internal/renderer"
)

// ESC/POS control bytes
const (
	ESC byte = 0x1B
	GS  byte = 0x1D
	LF  byte = 0x0A
)

// Encoder opens print sessions on a device
type Encoder interface {
	Open() (Session, error)
}

// Session is one receipt: content is staged in order and Commit finishes
// it with a feed and a cut.
type Session interface {
	WriteLine(text string) error
	// WriteBitmap prints an encoded two-level bitmap (see renderer.Bitmap)
	WriteBitmap(data []byte) error
	WriteBarcode(sym job.Symbology, payload string) error
	WriteQR(payload string) error
	Commit() error
}

// EscposEncoder writes ESC/POS through a Link. Every staging call is sent
// to the link as it is made, so contention surfaces before Commit.
type EscposEncoder struct {
	link      *Link
	feedLines int
}

// NewEscposEncoder creates an encoder that feeds feedLines before cutting
func NewEscposEncoder(link *Link, feedLines int) *EscposEncoder {
	if feedLines < 0 {
		feedLines = 0
	}
	return &EscposEncoder{link: link, feedLines: feedLines}
}

// Open initialises the printer and starts a session
func (e *EscposEncoder) Open() (Session, error) {
	s := &escposSession{
		p:         newEscpos(e.link),
		link:      e.link,
		feedLines: e.feedLines,
	}
	if err := s.send(func() error {
		_, err := s.p.WriteRaw([]byte{ESC, '@'})
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to initialise printer: %w", err)
	}
	return s, nil
}

// newEscpos returns a printer with every style field set. Write sends the
// whole style before each string, and a zero Size would go out as GS ! 0xFF.
func newEscpos(w io.Writer) *escpos.Escpos {
	p := escpos.New(w)
	p.Size(1, 1).Bold(false).Underline(0).Reverse(false).Rotate(false).UpsideDown(false)
	p.Justify(escpos.JustifyLeft)
	return p
}

type escposSession struct {
	p         *escpos.Escpos
	link      *Link
	feedLines int
	done      bool
}

// send stages one command and pushes it to the link
func (s *escposSession) send(stage func() error) error {
	if s.done {
		return fmt.Errorf("session already committed")
	}
	if err := stage(); err != nil {
		return err
	}
	return s.p.Print()
}

// center aligns raw output. Write carries its own ESC a from the style, so
// the next text line returns to the left.
func (s *escposSession) center() error {
	_, err := s.p.WriteRaw([]byte{ESC, 'a', escpos.JustifyCenter})
	return err
}

func (s *escposSession) WriteLine(text string) error {
	return s.send(func() error {
		s.p.Justify(escpos.JustifyLeft)
		if _, err := s.p.Write(text); err != nil {
			return err
		}
		_, err := s.p.LineFeed()
		return err
	})
}

func (s *escposSession) WriteBitmap(data []byte) error {
	bm, err := renderer.DecodeBitmap(data)
	if err != nil {
		return err
	}
	return s.send(func() error {
		if err := s.center(); err != nil {
			return err
		}
		_, err := s.p.PrintImage(renderer.PadToBytes(bm.Image))
		return err
	})
}

// WriteQR prints a QR symbol with the printer's own generator
func (s *escposSession) WriteQR(payload string) error {
	cmd, err := qrCommand(payload, qrModuleSize, qrErrorCorrectionM)
	if err != nil {
		return err
	}
	return s.send(func() error {
		if err := s.center(); err != nil {
			return err
		}
		if _, err := s.p.WriteRaw(cmd); err != nil {
			return err
		}
		_, err := s.p.LineFeed()
		return err
	})
}

// WriteBarcode prints a barcode with the printer's own generator
func (s *escposSession) WriteBarcode(sym job.Symbology, payload string) error {
	cmd, err := barcodeCommand(sym, payload)
	if err != nil {
		return err
	}
	return s.send(func() error {
		if err := s.center(); err != nil {
			return err
		}
		_, err := s.p.WriteRaw(cmd)
		return err
	})
}

// Commit feeds, cuts and waits for the link to drain
func (s *escposSession) Commit() error {
	if s.done {
		return fmt.Errorf("session already committed")
	}
	if s.feedLines > 0 {
		if _, err := s.p.WriteRaw([]byte{ESC, 'd', byte(s.feedLines)}); err != nil {
			return err
		}
	}
	if err := s.p.PrintAndCut(); err != nil {
		return err
	}
	s.done = true
	return s.link.Flush()
}

// QR symbol settings for GS ( k
const (
	qrModuleSize       byte = 6
	qrErrorCorrectionM byte = 49
	qrMaxPayload            = 7089
)

// qrCommand builds the GS ( k sequence: select model 2, module size, error
// correction, store the data, print the symbol.
func qrCommand(payload string, size, level byte) ([]byte, error) {
	if payload == "" || len(payload) > qrMaxPayload {
		return nil, fmt.Errorf("%w: QR payload must be 1 to %d bytes, got %d", job.ErrInvalidPayload, qrMaxPayload, len(payload))
	}

	var buf bytes.Buffer
	buf.Write([]byte{GS, '(', 'k', 4, 0, 49, 65, 50, 0})
	buf.Write([]byte{GS, '(', 'k', 3, 0, 49, 67, size})
	buf.Write([]byte{GS, '(', 'k', 3, 0, 49, 69, level})
	n := len(payload) + 3
	buf.Write([]byte{GS, '(', 'k', byte(n), byte(n >> 8), 49, 80, 48})
	buf.WriteString(payload)
	buf.Write([]byte{GS, '(', 'k', 3, 0, 49, 81, 48})
	return buf.Bytes(), nil
}

// barcode system numbers for GS k, function B
var barcodeSystems = map[job.Symbology]byte{
	job.UPCA:    65,
	job.UPCE:    66,
	job.EAN13:   67,
	job.EAN8:    68,
	job.CODE39:  69,
	job.ITF:     70,
	job.CODABAR: 71,
}

// barcodeCommand builds height, width, label position and the GS k
// function B symbol command
func barcodeCommand(sym job.Symbology, payload string) ([]byte, error) {
	system, ok := barcodeSystems[sym]
	if !ok {
		return nil, fmt.Errorf("%w: unknown barcode type %q", job.ErrInvalidPayload, string(sym))
	}
	if len(payload) > 255 {
		return nil, fmt.Errorf("%w: %s payload too long", job.ErrInvalidPayload, sym)
	}

	var buf bytes.Buffer
	buf.Write([]byte{GS, 'h', 80}) // height in dots
	buf.Write([]byte{GS, 'w', 2})  // module width
	buf.Write([]byte{GS, 'H', 2})  // label below
	buf.Write([]byte{GS, 'k', system, byte(len(payload))})
	buf.WriteString(payload)
	buf.WriteByte(LF)
	return buf.Bytes(), nil
}
