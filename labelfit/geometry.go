package labelfit

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MMPerInch is exact by definition of the inch.
const MMPerInch = 25.4

// ErrInvalidGeometry is returned for non-positive sizes or resolutions.
var ErrInvalidGeometry = errors.New("invalid label geometry")

// MMToPixels converts a physical length to device pixels at dpi.
func MMToPixels(mm float64, dpi int) int {
	return int(math.Round(mm * float64(dpi) / MMPerInch))
}

func mmToPx(mm float64, dpi int) float64 {
	return mm * float64(dpi) / MMPerInch
}

// ParseLength parses "40mm", "2.625in" or a bare number (millimeters)
// and returns the length in millimeters.
func ParseLength(s string) (float64, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	factor := 1.0
	switch {
	case strings.HasSuffix(v, "mm"):
		v = strings.TrimSuffix(v, "mm")
	case strings.HasSuffix(v, "in"):
		v = strings.TrimSuffix(v, "in")
		factor = MMPerInch
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, fmt.Errorf("%w: length %q", ErrInvalidGeometry, s)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%w: length %q must be positive", ErrInvalidGeometry, s)
	}
	return n * factor, nil
}

// Preset describes a label sheet layout. Lengths keep their unit suffix
// so they can be dropped straight into CSS.
type Preset struct {
	Name   string
	Width  string
	Height string
	Gap    string
	Margin string
}

var presets = map[string]Preset{
	"avery5160": {Name: "avery5160", Width: "2.625in", Height: "1.0in", Gap: "0.125in", Margin: "0.5in"},
	"avery5167": {Name: "avery5167", Width: "1.75in", Height: "0.5in", Gap: "0.125in", Margin: "0.5in"},
	"2x1":       {Name: "2x1", Width: "2.0in", Height: "1.0in", Gap: "0.125in", Margin: "0.5in"},
	"1.5x1":     {Name: "1.5x1", Width: "1.5in", Height: "1.0in", Gap: "0.125in", Margin: "0.5in"},
}

// LookupPreset returns the named sheet preset, case-insensitively.
func LookupPreset(name string) (Preset, bool) {
	p, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// SizeMM returns the label width and height in millimeters.
func (p Preset) SizeMM() (float64, float64, error) {
	w, err := ParseLength(p.Width)
	if err != nil {
		return 0, 0, err
	}
	h, err := ParseLength(p.Height)
	if err != nil {
		return 0, 0, err
	}
	return w, h, nil
}
