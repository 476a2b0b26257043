package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"

	"github.com/thereceipt/receipt-relay/pkg/printformat"
)

// composeDocument builds a print document from key:value arguments, e.g.
// kind:barcode symbology:EAN13 payload:5901234123457
func composeDocument(args []string) (*printformat.Document, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("no compose arguments provided")
	}

	doc := &printformat.Document{Version: printformat.Version}
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, ":")
		if !ok {
			return nil, fmt.Errorf("argument must be in format 'name:value', got: %s", arg)
		}
		value = strings.Trim(value, `"'`)

		switch key {
		case "kind":
			doc.Kind = value
		case "text":
			doc.Text = value
		case "file_id":
			doc.FileID = value
		case "caption":
			doc.Caption = value
		case "animated":
			animated, err := cast.ToBoolE(value)
			if err != nil {
				return nil, fmt.Errorf("invalid animated value: %s", value)
			}
			doc.Animated = animated
		case "symbology":
			doc.Symbology = value
		case "payload":
			doc.Payload = value
		default:
			return nil, fmt.Errorf("unknown field: %s", key)
		}
	}

	if err := printformat.Validate(doc); err != nil {
		return nil, err
	}
	return doc, nil
}
