package printformat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/thereceipt/receipt-relay/internal/job"
)

// Parse decodes and validates a document
func Parse(data []byte) (*Document, error) {
	var doc Document
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}

	if err := Validate(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ParseFile parses a document from disk
func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return Parse(data)
}

// ToJSON encodes d
func (d *Document) ToJSON() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// ToJob converts a validated document to a print job. Payload rules beyond
// the document structure are left to job validation.
func (d *Document) ToJob() (job.Job, error) {
	switch d.Kind {
	case KindText:
		return job.Text{Content: d.Text}, nil
	case KindImage:
		return job.Image{Source: d.FileID, Caption: d.Caption}, nil
	case KindSticker:
		return job.Sticker{Source: d.FileID, Animated: d.Animated}, nil
	case KindQRCode:
		return job.QRCode{Payload: d.Payload}, nil
	case KindBarcode:
		sym, err := job.ParseSymbology(d.Symbology)
		if err != nil {
			return nil, err
		}
		return job.Barcode{Symbology: sym, Payload: d.Payload}, nil
	default:
		return nil, fmt.Errorf("unknown kind: %s", d.Kind)
	}
}
