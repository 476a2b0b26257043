package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestComposeDocument(t *testing.T) {
	doc, err := composeDocument([]string{"kind:barcode", "symbology:EAN13", "payload:5901234123457"})
	if err != nil {
		t.Fatalf("composeDocument failed: %v", err)
	}
	if doc.Kind != "barcode" || doc.Symbology != "EAN13" || doc.Payload != "5901234123457" || doc.Version != "1.0" {
		t.Errorf("Unexpected document: %+v", doc)
	}

	doc, err = composeDocument([]string{"kind:sticker", "file_id:upload_x.png", "animated:false"})
	if err != nil || doc.Animated {
		t.Errorf("Unexpected sticker document: %+v, %v", doc, err)
	}

	for _, args := range [][]string{
		nil,
		{"kind:text", "bogus"},
		{"kind:text", "size:32"},
		{"kind:sticker", "file_id:x", "animated:maybe"},
	} {
		if _, err := composeDocument(args); err == nil {
			t.Errorf("Expected error for %q", args)
		}
	}
}

func TestJoinArgs(t *testing.T) {
	got := joinArgs([]string{"text", `say "hi" now`, "plain"})
	want := `text "say \"hi\" now" plain`
	if got != want {
		t.Errorf("joinArgs = %s, want %s", got, want)
	}
}

func TestDecodeResult(t *testing.T) {
	res := decodeResult(http.StatusAccepted, []byte(`{"success":true,"job_id":"abc"}`))
	if !res.Success || res.Data["job_id"] != "abc" {
		t.Errorf("Unexpected result: %+v", res)
	}

	res = decodeResult(http.StatusUnauthorized, []byte(`{"error":"unauthorized"}`))
	if res.Success || res.Error != "unauthorized" {
		t.Errorf("Unexpected result: %+v", res)
	}

	if res := decodeResult(http.StatusOK, []byte("nope")); res.Success {
		t.Error("Expected failure for invalid JSON")
	}
}

func TestClientCommandAndUpload(t *testing.T) {
	var gotCommand, gotCaption, gotAuth string
	var gotFile []byte
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		switch r.URL.Path {
		case "/command":
			var req map[string]string
			json.NewDecoder(r.Body).Decode(&req)
			gotCommand = req["command"]
			w.Write([]byte(`{"success":true,"message":"ok"}`))
		case "/print/image":
			f, _, err := r.FormFile("file")
			if err != nil {
				http.Error(w, `{"error":"no file"}`, http.StatusBadRequest)
				return
			}
			defer f.Close()
			buf := make([]byte, 64)
			n, _ := f.Read(buf)
			gotFile = buf[:n]
			gotCaption = r.FormValue("caption")
			w.WriteHeader(http.StatusAccepted)
			w.Write([]byte(`{"success":true,"job_id":"j1"}`))
		}
	}))
	defer ts.Close()

	c := &client{baseURL: ts.URL, token: "secret"}

	res := c.command(joinArgs([]string{"text", "hello world"}))
	if !res.Success || gotCommand != `text "hello world"` || gotAuth != "Bearer secret" {
		t.Errorf("Unexpected command round trip: %+v %q %q", res, gotCommand, gotAuth)
	}

	path := filepath.Join(t.TempDir(), "cat.png")
	if err := os.WriteFile(path, []byte("png bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !isUpload([]string{"image", path}) || isUpload([]string{"image", "upload_abc.png"}) {
		t.Error("isUpload should only match local files")
	}

	res = c.upload("image", path, []string{"a", "cat"})
	if !res.Success || res.Data["job_id"] != "j1" {
		t.Errorf("Unexpected upload result: %+v", res)
	}
	if string(gotFile) != "png bytes" || gotCaption != "a cat" {
		t.Errorf("Unexpected upload: %q caption %q", gotFile, gotCaption)
	}
	if !strings.HasPrefix(gotAuth, "Bearer") {
		t.Error("Expected auth header on upload")
	}
}
