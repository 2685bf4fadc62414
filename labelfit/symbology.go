package labelfit

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/boombuler/barcode/ean"
	"github.com/boombuler/barcode/qr"
)

// Symbology names a barcode encoding scheme.
type Symbology string

const (
	Auto    Symbology = ""
	EAN8    Symbology = "ean8"
	UPCA    Symbology = "upca"
	EAN13   Symbology = "ean13"
	Code128 Symbology = "code128"
	QR      Symbology = "qr"
)

var (
	// ErrEmptyCode is returned when nothing is left to encode after normalization.
	ErrEmptyCode = errors.New("empty code")
	// ErrUnencodable is returned when even the general-purpose symbology rejects the payload.
	ErrUnencodable = errors.New("code cannot be encoded")
)

// ParseSymbology maps a query value to a Symbology. Unknown names select Auto.
func ParseSymbology(s string) Symbology {
	switch Symbology(strings.ToLower(strings.TrimSpace(s))) {
	case EAN8:
		return EAN8
	case UPCA, "upc":
		return UPCA
	case EAN13, "ean":
		return EAN13
	case Code128:
		return Code128
	case QR:
		return QR
	default:
		return Auto
	}
}

// Normalize trims raw scanner input and drops anything that is not a
// letter or digit.
func Normalize(raw string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Select picks the symbology for a payload by its length and digit-ness.
// It always returns a symbology; Code128 accepts anything else.
func Select(payload string) Symbology {
	if isDigits(payload) {
		switch len(payload) {
		case 8:
			return EAN8
		case 12:
			return UPCA
		case 13:
			return EAN13
		}
	}
	return Code128
}

func encodeAs(payload string, sym Symbology) (barcode.Barcode, error) {
	switch sym {
	case EAN8, UPCA, EAN13:
		want := map[Symbology]int{EAN8: 8, UPCA: 12, EAN13: 13}[sym]
		if !isDigits(payload) || len(payload) != want {
			return nil, fmt.Errorf("%s needs exactly %d digits", sym, want)
		}
		if sym == UPCA {
			// UPC-A is EAN-13 with a leading zero.
			return ean.Encode("0" + payload)
		}
		return ean.Encode(payload)
	case QR:
		return qr.Encode(payload, qr.M, qr.Auto)
	default:
		return code128.Encode(payload)
	}
}

// Encode encodes payload with the preferred symbology (Auto selects one).
// A rejection by the specific symbology falls back to Code128 once; a
// Code128 rejection is returned as ErrUnencodable.
func Encode(payload string, preferred Symbology) (barcode.Barcode, Symbology, error) {
	if payload == "" {
		return nil, "", ErrEmptyCode
	}
	sym := preferred
	if sym == Auto {
		sym = Select(payload)
	}

	if sym != Code128 {
		bc, err := encodeAs(payload, sym)
		if err == nil {
			return bc, sym, nil
		}
	}

	bc, err := encodeAs(payload, Code128)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnencodable, err)
	}
	return bc, Code128, nil
}
