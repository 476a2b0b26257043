package command

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/thereceipt/receipt-relay/internal/job"
	"github.com/thereceipt/receipt-relay/internal/printer"
	"github.com/thereceipt/receipt-relay/internal/renderer"
)

type nopEncoder struct {
	mu    sync.Mutex
	lines []string
}

func (e *nopEncoder) Open() (printer.Session, error) { return &nopSession{enc: e}, nil }

type nopSession struct{ enc *nopEncoder }

func (s *nopSession) WriteLine(text string) error {
	s.enc.mu.Lock()
	s.enc.lines = append(s.enc.lines, text)
	s.enc.mu.Unlock()
	return nil
}
func (s *nopSession) WriteBitmap([]byte) error                 { return nil }
func (s *nopSession) WriteBarcode(job.Symbology, string) error { return nil }
func (s *nopSession) WriteQR(string) error                     { return nil }
func (s *nopSession) Commit() error                            { return nil }

func newTestExecutor(t *testing.T, ports PortLister) (*Executor, *printer.PrintQueue) {
	t.Helper()
	svc := printer.NewService(&nopEncoder{}, nil, renderer.NewPreprocessor(renderer.DefaultOptions(), nil), printer.ServiceOptions{}, nil)
	q := printer.NewPrintQueue(svc, printer.QueueOptions{PollInterval: 5 * time.Millisecond}, nil)
	t.Cleanup(q.Stop)
	return NewExecutor(q, printer.NewLink("Serial port (/dev/null)", nil, time.Second, nil), nil, ports), q
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"   ", nil},
		{"job list", []string{"job", "list"}},
		{`text "Hello World"`, []string{"text", "Hello World"}},
		{`text 'it"s'`, []string{"text", `it"s`}},
		{`text a\ b`, []string{"text", "a b"}},
		{`text ""`, []string{"text", ""}},
		{"qr  héllo\twörld", []string{"qr", "héllo", "wörld"}},
	}

	for _, tt := range tests {
		if got := parseCommand(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseCommand(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestUnknownCommand(t *testing.T) {
	e, _ := newTestExecutor(t, nil)

	res := e.Execute("dance")
	if res.Success {
		t.Fatal("Expected failure")
	}
	if res.Error != "unknown command: dance. Type 'help' for available commands" {
		t.Errorf("Unexpected error: %q", res.Error)
	}
	if res := e.Execute(""); res.Success || res.Error != "empty command" {
		t.Errorf("Expected empty command error, got %+v", res)
	}
}

func TestHelpAndStart(t *testing.T) {
	e, _ := newTestExecutor(t, nil)

	for _, cmd := range []string{"help", "start", "/start"} {
		res := e.Execute(cmd)
		if !res.Success || !strings.Contains(res.Message, "barcode <symbology> <payload>") {
			t.Errorf("%s: expected usage text, got %+v", cmd, res)
		}
	}
}

func TestTextCommandQueuesJob(t *testing.T) {
	e, q := newTestExecutor(t, nil)

	res := e.Execute(`text "hello there"`)
	if !res.Success {
		t.Fatalf("Expected success, got %s", res.Error)
	}
	if res.Message != `Printing "hello there"!` {
		t.Errorf("Unexpected message: %q", res.Message)
	}

	id, _ := res.Data["job_id"].(string)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rec, err := q.Wait(ctx, id)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if rec.State != job.Committed {
		t.Errorf("Expected committed, got %s (%s)", rec.State, rec.Error)
	}

	status := e.Execute("job status " + id)
	if !status.Success || status.Data["state"] != job.Committed {
		t.Errorf("Unexpected status: %+v", status)
	}

	list := e.Execute("job list")
	if jobs, _ := list.Data["jobs"].([]map[string]any); len(jobs) != 1 {
		t.Errorf("Expected 1 job, got %+v", list.Data)
	}

	if clear := e.Execute("job clear"); !clear.Success || clear.Message != "Cleared 1 finished job(s)" {
		t.Errorf("Unexpected clear result: %+v", clear)
	}
}

func TestBarcodeCommand(t *testing.T) {
	e, _ := newTestExecutor(t, nil)

	if res := e.Execute("barcode ean13 5901234123457"); !res.Success {
		t.Errorf("Expected success, got %s", res.Error)
	}

	res := e.Execute("barcode EAN13 12345")
	if res.Success || !strings.Contains(res.Error, "EAN13") {
		t.Errorf("Expected payload error naming EAN13, got %+v", res)
	}

	if res := e.Execute("barcode PDF417 x"); res.Success {
		t.Error("Expected unknown symbology to fail")
	}
	if res := e.Execute("barcode EAN13"); res.Success || !strings.HasPrefix(res.Error, "usage:") {
		t.Errorf("Expected usage error, got %+v", res)
	}
}

func TestUsageErrors(t *testing.T) {
	e, _ := newTestExecutor(t, nil)

	for _, cmd := range []string{"text", "qr", "image", "sticker", "print", "job", "job status", "job nope"} {
		if res := e.Execute(cmd); res.Success {
			t.Errorf("%q: expected failure", cmd)
		}
	}
}

func TestPrintDocumentCommand(t *testing.T) {
	e, _ := newTestExecutor(t, nil)

	path := filepath.Join(t.TempDir(), "doc.json")
	if err := os.WriteFile(path, []byte(`{"version":"1.0","kind":"qrcode","payload":"hi"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	res := e.Execute("print " + path)
	if !res.Success {
		t.Fatalf("Expected success, got %s", res.Error)
	}
	if res.Data["kind"] != "qrcode" {
		t.Errorf("Expected qrcode job, got %v", res.Data["kind"])
	}
}

func TestPortsAndPrinter(t *testing.T) {
	ports := func() ([]printer.Device, error) {
		return []printer.Device{{Path: "/dev/ttyUSB0", Type: "serial", Description: "Serial: /dev/ttyUSB0"}}, nil
	}
	e, _ := newTestExecutor(t, ports)

	res := e.Execute("ports")
	if !res.Success || res.Message != "Found 1 port(s)" {
		t.Errorf("Unexpected ports result: %+v", res)
	}

	res = e.Execute("printer")
	if !res.Success || res.Data["name"] != "Serial port (/dev/null)" {
		t.Errorf("Unexpected printer result: %+v", res)
	}

	failing, _ := newTestExecutor(t, func() ([]printer.Device, error) { return nil, errors.New("no ports") })
	if res := failing.Execute("ports"); res.Success {
		t.Error("Expected ports failure")
	}
}
