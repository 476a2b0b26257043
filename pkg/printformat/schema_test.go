package printformat

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/thereceipt/receipt-relay/internal/job"
)

func TestParse_Barcode(t *testing.T) {
	doc, err := Parse([]byte(`{"version":"1.0","kind":"barcode","symbology":"ean-13","payload":"5901234123457"}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	j, err := doc.ToJob()
	if err != nil {
		t.Fatalf("ToJob failed: %v", err)
	}
	bc, ok := j.(job.Barcode)
	if !ok {
		t.Fatalf("Expected job.Barcode, got %T", j)
	}
	if bc.Symbology != job.EAN13 || bc.Payload != "5901234123457" {
		t.Errorf("Unexpected job: %+v", bc)
	}
}

func TestParse_AllKinds(t *testing.T) {
	tests := []struct {
		doc  string
		kind string
	}{
		{`{"version":"1.0","kind":"text","text":"hello"}`, "text"},
		{`{"version":"1.0","kind":"image","file_id":"upload_1.png","caption":"cat"}`, "image"},
		{`{"version":"1.0","kind":"sticker","file_id":"s1"}`, "sticker"},
		{`{"version":"1.0","kind":"qrcode","payload":"https://example.com"}`, "qrcode"},
	}

	for _, tt := range tests {
		doc, err := Parse([]byte(tt.doc))
		if err != nil {
			t.Errorf("Parse(%s) failed: %v", tt.doc, err)
			continue
		}
		j, err := doc.ToJob()
		if err != nil {
			t.Errorf("ToJob(%s) failed: %v", tt.doc, err)
			continue
		}
		if j.Kind() != tt.kind {
			t.Errorf("Expected kind %s, got %s", tt.kind, j.Kind())
		}
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  Document
	}{
		{"missing version", Document{Kind: KindText, Text: "x"}},
		{"bad version", Document{Version: "2.0", Kind: KindText, Text: "x"}},
		{"missing kind", Document{Version: "1.0"}},
		{"unknown kind", Document{Version: "1.0", Kind: "receipt"}},
		{"blank text", Document{Version: "1.0", Kind: KindText, Text: "  "}},
		{"image without file", Document{Version: "1.0", Kind: KindImage}},
		{"animated image", Document{Version: "1.0", Kind: KindImage, FileID: "f", Animated: true}},
		{"qr without payload", Document{Version: "1.0", Kind: KindQRCode}},
		{"barcode without symbology", Document{Version: "1.0", Kind: KindBarcode, Payload: "1"}},
		{"barcode without payload", Document{Version: "1.0", Kind: KindBarcode, Symbology: "EAN13"}},
	}

	for _, tt := range tests {
		if err := Validate(&tt.doc); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	if _, err := Parse([]byte(`{"version":"1.0","kind":"text","text":"x","font":"Arial"}`)); err == nil {
		t.Error("Expected error for unknown field")
	}
	if _, err := Parse([]byte(`not json`)); err == nil {
		t.Error("Expected error for malformed JSON")
	}
}

func TestToJob_UnknownSymbology(t *testing.T) {
	doc := &Document{Version: "1.0", Kind: KindBarcode, Symbology: "PDF417", Payload: "x"}
	if _, err := doc.ToJob(); !errors.Is(err, job.ErrInvalidPayload) {
		t.Errorf("Expected ErrInvalidPayload, got %v", err)
	}
}

func TestParseFile_RoundTrip(t *testing.T) {
	doc := &Document{Version: "1.0", Kind: KindQRCode, Payload: "hello"}
	data, err := doc.ToJSON()
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "job.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if *got != *doc {
		t.Errorf("Expected %+v, got %+v", doc, got)
	}
}
