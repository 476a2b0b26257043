// Package command implements the relay's text command language, shared by
// the HTTP API, the dashboard and relayctl.
package command

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/thereceipt/receipt-relay/internal/printer"
)

// PortLister lists printer candidates on this machine
type PortLister func() ([]printer.Device, error)

// Executor executes commands
type Executor struct {
	queue     *printer.PrintQueue
	link      *printer.Link
	monitor   *printer.Monitor
	listPorts PortLister
}

// NewExecutor creates a command executor. monitor may be nil; listPorts
// defaults to printer.ListCandidates.
func NewExecutor(queue *printer.PrintQueue, link *printer.Link, monitor *printer.Monitor, listPorts PortLister) *Executor {
	if listPorts == nil {
		listPorts = printer.ListCandidates
	}
	return &Executor{
		queue:     queue,
		link:      link,
		monitor:   monitor,
		listPorts: listPorts,
	}
}

// Result represents the result of executing a command
type Result struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

func failure(format string, args ...any) *Result {
	return &Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// Execute executes a command string and returns a result
func (e *Executor) Execute(cmdStr string) *Result {
	parts := parseCommand(cmdStr)
	if len(parts) == 0 {
		return failure("empty command")
	}

	// commands may be typed bot style, "/qr ..."
	command := strings.ToLower(strings.TrimPrefix(parts[0], "/"))
	args := parts[1:]

	switch command {
	case "help", "start":
		return e.handleHelp()
	case "text":
		return e.handleText(args)
	case "qr":
		return e.handleQR(args)
	case "barcode":
		return e.handleBarcode(args)
	case "image":
		return e.handleImage(args)
	case "sticker":
		return e.handleSticker(args)
	case "print":
		return e.handlePrint(args)
	case "job":
		return e.handleJob(args)
	case "ports":
		return e.handlePorts()
	case "printer":
		return e.handlePrinter()
	default:
		return failure("unknown command: %s. Type 'help' for available commands", parts[0])
	}
}

// parseCommand splits a command line on whitespace. Single or double quotes
// group words, and a backslash escapes the next character.
func parseCommand(cmdStr string) []string {
	var (
		parts   []string
		current strings.Builder
		quote   rune
		escaped bool
		started bool
	)

	for _, r := range strings.TrimSpace(cmdStr) {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
			started = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			started = true
		case unicode.IsSpace(r):
			if started {
				parts = append(parts, current.String())
				current.Reset()
				started = false
			}
		default:
			current.WriteRune(r)
			started = true
		}
	}

	if started {
		parts = append(parts, current.String())
	}
	return parts
}
