// Package labelfit renders barcode and QR labels sized to fit a physical
// label at a given print resolution.
package labelfit

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"log/slog"
)

// Fitter searches the module width range for the largest rendering that
// fits the label's pixel box.
type Fitter struct {
	MinModuleMM float64
	MaxModuleMM float64
	Iterations  int
	// Fallback is rendered unconditionally when no trial fits.
	Fallback Params
}

// NewFitter returns a Fitter with the default search range.
func NewFitter() *Fitter {
	return &Fitter{
		MinModuleMM: 0.12,
		MaxModuleMM: 0.40,
		Iterations:  18,
		Fallback:    Params{ModuleWidthMM: 0.20},
	}
}

// Request describes a label to render.
type Request struct {
	Code      string
	WidthMM   float64
	HeightMM  float64
	DPI       int
	WriteText bool
	Symbology Symbology
}

// Result is a rendered label and what was chosen to produce it.
type Result struct {
	PNG           []byte
	Width         int
	Height        int
	TargetWidth   int
	TargetHeight  int
	Symbology     Symbology
	Text          string
	ModuleWidthMM float64
	Attempts      int
	// Fitted is false when the fallback parameters were used.
	Fitted bool
}

// DataURI returns the PNG as a data URI for embedding in HTML.
func (r *Result) DataURI() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(r.PNG)
}

// Fit renders req.Code as large as the label allows.
func (f *Fitter) Fit(req Request) (*Result, error) {
	if req.WidthMM <= 0 || req.HeightMM <= 0 || req.DPI <= 0 {
		return nil, fmt.Errorf("%w: %.2fx%.2fmm at %d dpi", ErrInvalidGeometry, req.WidthMM, req.HeightMM, req.DPI)
	}

	text := Normalize(req.Code)
	bc, sym, err := Encode(text, req.Symbology)
	if err != nil {
		return nil, err
	}

	targetW := MMToPixels(req.WidthMM, req.DPI)
	targetH := MMToPixels(req.HeightMM, req.DPI)

	res := &Result{
		TargetWidth:  targetW,
		TargetHeight: targetH,
		Symbology:    sym,
		Text:         text,
	}

	lo, hi := f.MinModuleMM, f.MaxModuleMM
	bestArea := -1
	for i := 0; i < f.Iterations; i++ {
		mid := (lo + hi) / 2
		res.Attempts++

		img, err := Render(bc, text, Params{ModuleWidthMM: mid, WriteText: req.WriteText}, req.DPI)
		if err != nil {
			return nil, fmt.Errorf("render trial %d: %w", i, err)
		}
		w, h := img.Bounds().Dx(), img.Bounds().Dy()
		if w > targetW || h > targetH {
			hi = mid
			continue
		}

		if area := w * h; area > bestArea {
			bestArea = area
			res.ModuleWidthMM = mid
			res.Width, res.Height = w, h
			res.PNG, err = encodePNG(img)
			if err != nil {
				return nil, err
			}
		}
		lo = mid
	}

	if bestArea >= 0 {
		res.Fitted = true
		return res, nil
	}

	slog.Debug("label did not fit, using fallback",
		"code", text,
		"symbology", sym,
		"target_w", targetW,
		"target_h", targetH,
	)
	p := f.Fallback
	p.WriteText = req.WriteText
	img, err := Render(bc, text, p, req.DPI)
	if err != nil {
		return nil, fmt.Errorf("render fallback: %w", err)
	}
	res.ModuleWidthMM = p.ModuleWidthMM
	res.Width, res.Height = img.Bounds().Dx(), img.Bounds().Dy()
	if res.PNG, err = encodePNG(img); err != nil {
		return nil, err
	}
	return res, nil
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
