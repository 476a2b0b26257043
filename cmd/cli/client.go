package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/thereceipt/receipt-relay/pkg/printformat"
)

// CommandResult is a relay response. Fields other than success, message
// and error end up in Data.
type CommandResult struct {
	Success bool
	Message string
	Data    map[string]any
	Error   string
}

type client struct {
	baseURL string
	token   string
	http    http.Client
}

func (c *client) command(command string) *CommandResult {
	body, err := json.Marshal(map[string]string{"command": command})
	if err != nil {
		return failed("failed to marshal request: %v", err)
	}
	return c.post("/command", "application/json", bytes.NewReader(body))
}

func (c *client) printDocument(doc *printformat.Document) *CommandResult {
	body, err := doc.ToJSON()
	if err != nil {
		return failed("failed to encode document: %v", err)
	}
	return c.post("/print", "application/json", bytes.NewReader(body))
}

// upload sends a local file to /print/image or /print/sticker. For images
// the remaining arguments form the caption.
func (c *client) upload(kind, path string, rest []string) *CommandResult {
	f, err := os.Open(path)
	if err != nil {
		return failed("failed to open %s: %v", path, err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return failed("failed to build upload: %v", err)
	}
	if _, err := io.Copy(fw, f); err != nil {
		return failed("failed to read %s: %v", path, err)
	}
	if kind == "image" && len(rest) > 0 {
		mw.WriteField("caption", strings.Join(rest, " "))
	}
	if err := mw.Close(); err != nil {
		return failed("failed to build upload: %v", err)
	}

	return c.post("/print/"+kind, mw.FormDataContentType(), &body)
}

func (c *client) post(path, contentType string, body io.Reader) *CommandResult {
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return failed("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", contentType)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	if c.http.Timeout == 0 {
		c.http.Timeout = 30 * time.Second
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return failed("failed to connect to server: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return failed("failed to read response: %v", err)
	}
	return decodeResult(resp.StatusCode, data)
}

func decodeResult(status int, data []byte) *CommandResult {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return failed("failed to parse response (HTTP %d): %v", status, err)
	}

	result := &CommandResult{Data: make(map[string]any)}
	for k, v := range raw {
		switch k {
		case "success":
			result.Success, _ = v.(bool)
		case "message":
			result.Message, _ = v.(string)
		case "error":
			result.Error, _ = v.(string)
		default:
			result.Data[k] = v
		}
	}
	if status >= 300 {
		result.Success = false
		if result.Error == "" {
			result.Error = fmt.Sprintf("HTTP %d", status)
		}
	}
	return result
}

func failed(format string, args ...any) *CommandResult {
	return &CommandResult{Success: false, Error: fmt.Sprintf(format, args...)}
}
