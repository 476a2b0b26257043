package printer

import (
	"errors"
	"fmt"

	"github.com/thereceipt/receipt-relay/internal/job"
	"github.com/thereceipt/receipt-relay/internal/renderer"
)

var (
	// ErrIO covers device open, read, write and flush failures
	ErrIO = errors.New("io error")
	// ErrBusy is returned when another caller holds the link
	ErrBusy = errors.New("printer busy")
	// ErrTimeout is an ErrIO raised when an operation outlives the link timeout
	ErrTimeout = fmt.Errorf("%w: timeout", ErrIO)
)

// Error kinds reported to clients
const (
	KindDecode         = "decode"
	KindEncode         = "encode"
	KindIO             = "io"
	KindBusy           = "busy"
	KindInvalidPayload = "invalid_payload"
	KindUnknown        = "unknown"
)

// ErrorKind classifies err into one of the reported kinds
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrBusy):
		return KindBusy
	case errors.Is(err, ErrIO):
		return KindIO
	case errors.Is(err, renderer.ErrDecode):
		return KindDecode
	case errors.Is(err, renderer.ErrEncode):
		return KindEncode
	case errors.Is(err, job.ErrInvalidPayload):
		return KindInvalidPayload
	default:
		return KindUnknown
	}
}
