package labelfit

import (
	"bytes"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMMToPixels(t *testing.T) {
	assert.Equal(t, 472, MMToPixels(40, 300))
	assert.Equal(t, 354, MMToPixels(30, 300))
	assert.Equal(t, 300, MMToPixels(25.4, 300))
	assert.Equal(t, 203, MMToPixels(25.4, 203))
}

func TestParseLength(t *testing.T) {
	testCases := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{in: "40mm", want: 40},
		{in: "40", want: 40},
		{in: " 2.625in ", want: 2.625 * 25.4},
		{in: "1IN", want: 25.4},
		{in: "0", wantErr: true},
		{in: "-3mm", wantErr: true},
		{in: "wide", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseLength(tc.in)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidGeometry)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestPresets(t *testing.T) {
	p, ok := LookupPreset("Avery5160")
	require.True(t, ok)
	w, h, err := p.SizeMM()
	require.NoError(t, err)
	assert.InDelta(t, 66.675, w, 1e-9)
	assert.InDelta(t, 25.4, h, 1e-9)

	_, ok = LookupPreset("nope")
	assert.False(t, ok)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "036000291452", Normalize(" 036-000 291452\n"))
	assert.Equal(t, "ABC123", Normalize("ABC_123!"))
	assert.Equal(t, "", Normalize("  --  "))
}

func TestSelect(t *testing.T) {
	assert.Equal(t, EAN8, Select("96385074"))
	assert.Equal(t, UPCA, Select("036000291452"))
	assert.Equal(t, EAN13, Select("4006381333931"))
	assert.Equal(t, Code128, Select("1234567"))
	assert.Equal(t, Code128, Select("SKU12345678"))
	assert.Equal(t, Code128, Select("12345678901234"))
}

func TestEncode(t *testing.T) {
	testCases := []struct {
		name      string
		payload   string
		preferred Symbology
		want      Symbology
	}{
		{name: "valid ean13", payload: "4006381333931", want: EAN13},
		{name: "bad ean13 checksum falls back", payload: "4006381333932", want: Code128},
		{name: "valid upca", payload: "036000291452", want: UPCA},
		{name: "bad upca checksum falls back", payload: "036000291453", want: Code128},
		{name: "valid ean8", payload: "96385074", want: EAN8},
		{name: "alphanumeric", payload: "SKU42", want: Code128},
		{name: "forced ean13 with letters falls back", payload: "ABC", preferred: EAN13, want: Code128},
		{name: "explicit qr", payload: "SKU42", preferred: QR, want: QR},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			bc, sym, err := Encode(tc.payload, tc.preferred)
			require.NoError(t, err)
			require.NotNil(t, bc)
			assert.Equal(t, tc.want, sym)
		})
	}
}

func TestEncodeFailures(t *testing.T) {
	_, _, err := Encode("", Auto)
	assert.ErrorIs(t, err, ErrEmptyCode)

	_, _, err = Encode("コード", Auto)
	assert.ErrorIs(t, err, ErrUnencodable)
}

func TestParseSymbology(t *testing.T) {
	assert.Equal(t, QR, ParseSymbology("QR"))
	assert.Equal(t, UPCA, ParseSymbology("upc"))
	assert.Equal(t, Auto, ParseSymbology(""))
	assert.Equal(t, Auto, ParseSymbology("pdf417"))
}

func TestRenderScalesWithModuleWidth(t *testing.T) {
	bc, _, err := Encode("4006381333931", Auto)
	require.NoError(t, err)

	small, err := Render(bc, "4006381333931", Params{ModuleWidthMM: 0.15, WriteText: true}, 300)
	require.NoError(t, err)
	large, err := Render(bc, "4006381333931", Params{ModuleWidthMM: 0.35, WriteText: true}, 300)
	require.NoError(t, err)

	assert.Greater(t, large.Bounds().Dx(), small.Bounds().Dx())
	assert.Greater(t, large.Bounds().Dy(), small.Bounds().Dy())

	plain, err := Render(bc, "4006381333931", Params{ModuleWidthMM: 0.35}, 300)
	require.NoError(t, err)
	assert.Less(t, plain.Bounds().Dy(), large.Bounds().Dy())

	_, err = Render(bc, "", Params{}, 300)
	assert.ErrorIs(t, err, ErrInvalidGeometry)
}

func TestFitEAN13At300DPI(t *testing.T) {
	f := NewFitter()
	res, err := f.Fit(Request{Code: "4006381333931", WidthMM: 40, HeightMM: 30, DPI: 300, WriteText: true})
	require.NoError(t, err)

	assert.Equal(t, 472, res.TargetWidth)
	assert.Equal(t, 354, res.TargetHeight)
	assert.Equal(t, 18, res.Attempts)
	assert.True(t, res.Fitted)
	assert.Equal(t, EAN13, res.Symbology)
	assert.Equal(t, "4006381333931", res.Text)
	assert.LessOrEqual(t, res.Width, res.TargetWidth)
	assert.LessOrEqual(t, res.Height, res.TargetHeight)
	assert.GreaterOrEqual(t, res.ModuleWidthMM, f.MinModuleMM)
	assert.LessOrEqual(t, res.ModuleWidthMM, f.MaxModuleMM)

	img, err := png.Decode(bytes.NewReader(res.PNG))
	require.NoError(t, err)
	assert.Equal(t, res.Width, img.Bounds().Dx())
	assert.Equal(t, res.Height, img.Bounds().Dy())
}

func TestFitPicksLargerRenderingForLargerLabel(t *testing.T) {
	f := NewFitter()
	small, err := f.Fit(Request{Code: "SKU-1001", WidthMM: 30, HeightMM: 15, DPI: 300})
	require.NoError(t, err)
	large, err := f.Fit(Request{Code: "SKU-1001", WidthMM: 60, HeightMM: 30, DPI: 300})
	require.NoError(t, err)

	require.True(t, small.Fitted)
	require.True(t, large.Fitted)
	assert.Greater(t, large.Width*large.Height, small.Width*small.Height)
	assert.Equal(t, "SKU1001", large.Text)
}

func TestFitFallsBackWhenNothingFits(t *testing.T) {
	f := NewFitter()
	res, err := f.Fit(Request{Code: "4006381333931", WidthMM: 3, HeightMM: 3, DPI: 300, WriteText: true})
	require.NoError(t, err)

	assert.False(t, res.Fitted)
	assert.Equal(t, f.Iterations, res.Attempts)
	assert.Equal(t, f.Fallback.ModuleWidthMM, res.ModuleWidthMM)
	assert.NotEmpty(t, res.PNG)
	assert.Greater(t, res.Width, res.TargetWidth)
}

func TestFitQR(t *testing.T) {
	res, err := NewFitter().Fit(Request{Code: "item42", WidthMM: 25.4, HeightMM: 25.4, DPI: 203, Symbology: QR})
	require.NoError(t, err)
	assert.Equal(t, QR, res.Symbology)
	assert.True(t, res.Fitted)
	assert.LessOrEqual(t, res.Width, res.TargetWidth)
	assert.LessOrEqual(t, res.Height, res.TargetHeight)
}

func TestFitErrors(t *testing.T) {
	f := NewFitter()
	_, err := f.Fit(Request{Code: "123", WidthMM: 0, HeightMM: 10, DPI: 300})
	assert.ErrorIs(t, err, ErrInvalidGeometry)

	_, err = f.Fit(Request{Code: "!!!", WidthMM: 40, HeightMM: 30, DPI: 300})
	assert.ErrorIs(t, err, ErrEmptyCode)
}

func TestDataURI(t *testing.T) {
	res := &Result{PNG: []byte{0x89, 'P', 'N', 'G'}}
	assert.True(t, strings.HasPrefix(res.DataURI(), "data:image/png;base64,"))
}
