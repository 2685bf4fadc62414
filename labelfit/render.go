package labelfit

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/boombuler/barcode"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Ratios of the dependent rendering values to the module width.
const (
	barHeightRatio = 75.0 // 15mm bars at a 0.2mm module
	quietZoneRatio = 10.0
	textGapRatio   = 5.0
	fontPointRatio = 30.0 // points per mm of module width
)

// Params is one trial of the fitter. Every other dimension is derived
// from ModuleWidthMM.
type Params struct {
	ModuleWidthMM float64
	WriteText     bool
}

func (p Params) BarHeightMM() float64 { return p.ModuleWidthMM * barHeightRatio }
func (p Params) QuietZoneMM() float64 { return p.ModuleWidthMM * quietZoneRatio }
func (p Params) TextGapMM() float64   { return p.ModuleWidthMM * textGapRatio }
func (p Params) FontSizePt() float64  { return p.ModuleWidthMM * fontPointRatio }

var goRegular = sync.OnceValues(func() (*opentype.Font, error) {
	return opentype.Parse(goregular.TTF)
})

func isDark(c color.Color) bool {
	return color.GrayModel.Convert(c).(color.Gray).Y < 128
}

func roundPx(v float64) int {
	return int(math.Round(v))
}

// Render draws bc with the human-readable text below it (when requested)
// on a white background.
func Render(bc barcode.Barcode, text string, p Params, dpi int) (*image.Gray, error) {
	if p.ModuleWidthMM <= 0 || dpi <= 0 {
		return nil, fmt.Errorf("%w: module %.3fmm at %d dpi", ErrInvalidGeometry, p.ModuleWidthMM, dpi)
	}

	b := bc.Bounds()
	cols, rows := b.Dx(), b.Dy()
	twoD := bc.Metadata().Dimensions == 2

	modulePx := max(1, roundPx(mmToPx(p.ModuleWidthMM, dpi)))
	quietPx := roundPx(mmToPx(p.QuietZoneMM(), dpi))
	rowPx := modulePx
	if !twoD {
		rowPx = max(1, roundPx(mmToPx(p.BarHeightMM(), dpi)))
	}
	codeW, codeH := cols*modulePx, rows*rowPx

	var (
		face                 font.Face
		textW, gapPx, ascent int
		textH                int
	)
	if p.WriteText && text != "" {
		f, err := goRegular()
		if err != nil {
			return nil, fmt.Errorf("load font: %w", err)
		}
		face, err = opentype.NewFace(f, &opentype.FaceOptions{
			Size:    p.FontSizePt(),
			DPI:     float64(dpi),
			Hinting: font.HintingFull,
		})
		if err != nil {
			return nil, fmt.Errorf("create font face: %w", err)
		}
		defer face.Close()

		m := face.Metrics()
		ascent = m.Ascent.Ceil()
		textH = ascent + m.Descent.Ceil()
		textW = font.MeasureString(face, text).Ceil()
		gapPx = roundPx(mmToPx(p.TextGapMM(), dpi))
	}

	contentW := max(codeW, textW)
	marginY := quietPx / 2
	width := contentW + 2*quietPx
	height := 2*marginY + codeH
	if face != nil {
		height += gapPx + textH
	}

	img := image.NewGray(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	x0 := quietPx + (contentW-codeW)/2
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			if !isDark(bc.At(b.Min.X+x, b.Min.Y+y)) {
				continue
			}
			r := image.Rect(x0+x*modulePx, marginY+y*rowPx, x0+(x+1)*modulePx, marginY+(y+1)*rowPx)
			draw.Draw(img, r, image.Black, image.Point{}, draw.Src)
		}
	}

	if face != nil {
		d := font.Drawer{
			Dst:  img,
			Src:  image.Black,
			Face: face,
			Dot:  fixed.P(quietPx+(contentW-textW)/2, marginY+codeH+gapPx+ascent),
		}
		d.DrawString(text)
	}

	return img, nil
}
