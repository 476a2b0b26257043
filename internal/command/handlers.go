package command

import (
	"fmt"
	"strings"

	"github.com/thereceipt/receipt-relay/internal/job"
	"github.com/thereceipt/receipt-relay/pkg/printformat"
)

// enqueue validates j up front so obvious mistakes are reported to the
// caller rather than only on the job record
func (e *Executor) enqueue(j job.Job, message string) *Result {
	if err := job.Validate(j); err != nil {
		return failure("%v", err)
	}

	jobID := e.queue.Enqueue(j)
	return &Result{
		Success: true,
		Message: message,
		Data: map[string]any{
			"job_id": jobID,
			"kind":   j.Kind(),
		},
	}
}

// Usage: text <words...>
func (e *Executor) handleText(args []string) *Result {
	if len(args) == 0 {
		return failure("usage: text <words...>")
	}
	text := strings.Join(args, " ")
	return e.enqueue(job.Text{Content: text}, fmt.Sprintf("Printing %q!", text))
}

// Usage: qr <payload>
func (e *Executor) handleQR(args []string) *Result {
	if len(args) == 0 {
		return failure("usage: qr <payload>")
	}
	payload := strings.Join(args, " ")
	return e.enqueue(job.QRCode{Payload: payload}, "Printing QR code")
}

// Usage: barcode <symbology> <payload>
func (e *Executor) handleBarcode(args []string) *Result {
	if len(args) != 2 {
		return failure("usage: barcode <symbology> <payload>")
	}
	sym, err := job.ParseSymbology(args[0])
	if err != nil {
		return failure("%v", err)
	}
	return e.enqueue(job.Barcode{Symbology: sym, Payload: args[1]}, fmt.Sprintf("Printing %s barcode", sym))
}

// Usage: image <file-id|url> [caption...]
func (e *Executor) handleImage(args []string) *Result {
	if len(args) == 0 {
		return failure("usage: image <file-id|url> [caption...]")
	}
	j := job.Image{Source: args[0], Caption: strings.Join(args[1:], " ")}
	return e.enqueue(j, fmt.Sprintf("Printing image %s", job.ShortID(j.Source)))
}

// Usage: sticker <file-id|url>
func (e *Executor) handleSticker(args []string) *Result {
	if len(args) != 1 {
		return failure("usage: sticker <file-id|url>")
	}
	return e.enqueue(job.Sticker{Source: args[0]}, fmt.Sprintf("Printing sticker %s", job.ShortID(args[0])))
}

// Usage: print <document.json>
func (e *Executor) handlePrint(args []string) *Result {
	if len(args) != 1 {
		return failure("usage: print <document.json>")
	}
	doc, err := printformat.ParseFile(args[0])
	if err != nil {
		return failure("invalid document: %v", err)
	}
	j, err := doc.ToJob()
	if err != nil {
		return failure("invalid document: %v", err)
	}
	return e.enqueue(j, fmt.Sprintf("Printing %s", j.Summary()))
}

func recordData(r *job.Record) map[string]any {
	data := map[string]any{
		"id":         r.ID,
		"kind":       r.Kind,
		"summary":    r.Summary,
		"state":      r.State,
		"retries":    r.Retries,
		"created_at": r.CreatedAt,
	}
	if r.Error != "" {
		data["error"] = r.Error
		data["error_kind"] = r.ErrorKind
	}
	return data
}

// Usage: job list | status <id> | clear
func (e *Executor) handleJob(args []string) *Result {
	if len(args) == 0 {
		return failure("usage: job <list|status|clear>")
	}

	switch args[0] {
	case "list":
		records := e.queue.GetAllJobs()
		jobs := make([]map[string]any, len(records))
		for i, r := range records {
			jobs[i] = recordData(r)
		}
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Found %d job(s)", len(records)),
			Data:    map[string]any{"jobs": jobs},
		}

	case "status":
		if len(args) < 2 {
			return failure("usage: job status <id>")
		}
		r := e.queue.GetJob(args[1])
		if r == nil {
			return failure("job not found: %s", args[1])
		}
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Job %s is %s", r.ID, r.State),
			Data:    recordData(r),
		}

	case "clear":
		n := e.queue.ClearCompleted()
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Cleared %d finished job(s)", n),
		}

	default:
		return failure("unknown job subcommand: %s. Use: list, status, clear", args[0])
	}
}

func (e *Executor) handlePorts() *Result {
	devices, err := e.listPorts()
	if err != nil {
		return failure("port listing failed: %v", err)
	}
	return &Result{
		Success: true,
		Message: fmt.Sprintf("Found %d port(s)", len(devices)),
		Data:    map[string]any{"ports": devices},
	}
}

func (e *Executor) handlePrinter() *Result {
	if e.link == nil {
		return failure("no printer configured")
	}
	present := true
	if e.monitor != nil {
		present = e.monitor.Available()
	}
	return &Result{
		Success: true,
		Message: fmt.Sprintf("%s (present: %t)", e.link.Name(), present),
		Data: map[string]any{
			"name":    e.link.Name(),
			"present": present,
			"stats":   e.link.Stats(),
		},
	}
}

func (e *Executor) handleHelp() *Result {
	helpText := `Available Commands:

  text <words...>
    Print plain text

  qr <payload>
    Print a QR code

  barcode <symbology> <payload>
    Print a barcode (EAN13, EAN8, UPCA, UPCE, CODE39, CODABAR, ITF)

  image <file-id|url> [caption...]
    Print an image, with an optional caption below it

  sticker <file-id|url>
    Print a static sticker

  print <document.json>
    Print a print document

  job list
    List all print jobs

  job status <id>
    Get status of a specific job

  job clear
    Clear finished jobs from the queue

  ports
    List serial ports

  printer
    Show the printer link and its activity

  help
    Show this help message

Examples:
  text "Hello World"
  qr https://example.com
  barcode EAN13 5901234123457
  image https://example.com/cat.png "my cat"
`

	return &Result{
		Success: true,
		Message: helpText,
	}
}
