package job

import (
	"errors"
	"fmt"
	"strings"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/codabar"
	"github.com/boombuler/barcode/code39"
	"github.com/boombuler/barcode/ean"
	"github.com/boombuler/barcode/twooffive"
	"github.com/skip2/go-qrcode"
)

// ErrInvalidPayload is returned when content is rejected before it reaches
// the printer, typically a barcode payload the symbology cannot encode.
var ErrInvalidPayload = errors.New("invalid payload")

// Symbology is a one-dimensional barcode standard
type Symbology string

const (
	EAN13   Symbology = "EAN13"
	EAN8    Symbology = "EAN8"
	UPCA    Symbology = "UPCA"
	UPCE    Symbology = "UPCE"
	CODE39  Symbology = "CODE39"
	CODABAR Symbology = "CODABAR"
	ITF     Symbology = "ITF"
)

// Symbologies lists every supported symbology in display order
var Symbologies = []Symbology{EAN13, EAN8, UPCA, UPCE, CODE39, CODABAR, ITF}

// ParseSymbology accepts names like "ean13", "EAN-13" or "upc_a"
func ParseSymbology(name string) (Symbology, error) {
	n := strings.ToUpper(name)
	n = strings.NewReplacer("-", "", "_", "", " ", "").Replace(n)
	for _, s := range Symbologies {
		if string(s) == n {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: unknown barcode type %q", ErrInvalidPayload, name)
}

// ValidatePayload checks that payload can be encoded with sym. Failures wrap
// ErrInvalidPayload and carry the encoder's own description.
func ValidatePayload(sym Symbology, payload string) error {
	_, err := EncodeBarcode(sym, payload)
	return err
}

// EncodeBarcode builds the symbol for payload. UPC-E payloads are expanded
// and returned as the equivalent UPC-A symbol.
func EncodeBarcode(sym Symbology, payload string) (barcode.Barcode, error) {
	if payload == "" {
		return nil, fmt.Errorf("%w: %s payload is empty", ErrInvalidPayload, sym)
	}

	var (
		bc  barcode.Barcode
		err error
	)
	switch sym {
	case EAN13:
		if !isDigits(payload) || (len(payload) != 12 && len(payload) != 13) {
			return nil, invalid(sym, "wrong digit count for EAN13, want 12 or 13 digits, got %q", payload)
		}
		bc, err = ean.Encode(payload)
	case EAN8:
		if !isDigits(payload) || (len(payload) != 7 && len(payload) != 8) {
			return nil, invalid(sym, "wrong digit count for EAN8, want 7 or 8 digits, got %q", payload)
		}
		bc, err = ean.Encode(payload)
	case UPCA:
		if !isDigits(payload) || (len(payload) != 11 && len(payload) != 12) {
			return nil, invalid(sym, "wrong digit count for UPCA, want 11 or 12 digits, got %q", payload)
		}
		// UPC-A is EAN-13 with a leading zero
		bc, err = ean.Encode("0" + payload)
	case UPCE:
		if err := validateUPCE(payload); err != nil {
			return nil, err
		}
		system := "0"
		if len(payload) > 6 {
			system, payload = payload[:1], payload[1:7]
		}
		bc, err = ean.Encode("0" + expandUPCE(system+payload))
	case CODE39:
		bc, err = code39.Encode(payload, false, false)
	case CODABAR:
		bc, err = codabar.Encode(payload)
	case ITF:
		if !isDigits(payload) || len(payload)%2 != 0 {
			return nil, invalid(sym, "ITF needs an even number of digits, got %q", payload)
		}
		bc, err = twooffive.Encode(payload, true)
	default:
		return nil, fmt.Errorf("%w: unknown barcode type %q", ErrInvalidPayload, string(sym))
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, sym, err)
	}
	return bc, nil
}

// ValidateQR checks that payload fits in a QR symbol at medium error correction
func ValidateQR(payload string) error {
	if payload == "" {
		return fmt.Errorf("%w: qrcode payload is empty", ErrInvalidPayload)
	}
	if _, err := qrcode.New(payload, qrcode.Medium); err != nil {
		return fmt.Errorf("%w: qrcode: %v", ErrInvalidPayload, err)
	}
	return nil
}

// validateUPCE accepts 6 data digits, 7 digits with number system, or 8 with
// a check digit that must match the expanded UPC-A form.
func validateUPCE(payload string) error {
	if !isDigits(payload) {
		return invalid(UPCE, "UPCE accepts digits only, got %q", payload)
	}

	switch len(payload) {
	case 6:
		return nil
	case 7, 8:
		if payload[0] != '0' && payload[0] != '1' {
			return invalid(UPCE, "UPCE number system must be 0 or 1, got %q", payload[:1])
		}
		if len(payload) == 7 {
			return nil
		}
		upca := expandUPCE(payload[:7])
		if want := upcCheckDigit(upca); payload[7] != want {
			return invalid(UPCE, "checksum mismatch, want %c got %c", want, payload[7])
		}
		return nil
	default:
		return invalid(UPCE, "wrong digit count for UPCE, want 6, 7 or 8 digits, got %q", payload)
	}
}

// expandUPCE converts a number system digit plus six UPC-E digits into the
// 11 digit UPC-A body.
func expandUPCE(e string) string {
	ns, d := e[:1], e[1:7]
	switch d[5] {
	case '0', '1', '2':
		return ns + d[0:2] + d[5:6] + "0000" + d[2:5]
	case '3':
		return ns + d[0:3] + "00000" + d[3:5]
	case '4':
		return ns + d[0:4] + "00000" + d[4:5]
	default:
		return ns + d[0:5] + "0000" + d[5:6]
	}
}

func upcCheckDigit(body string) byte {
	sum := 0
	for i, c := range body {
		n := int(c - '0')
		if i%2 == 0 {
			n *= 3
		}
		sum += n
	}
	return byte('0' + (10-sum%10)%10)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func invalid(sym Symbology, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidPayload, sym, fmt.Sprintf(format, args...))
}
