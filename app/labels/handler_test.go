package labels

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poshstock/poshstock/config"
	"github.com/poshstock/poshstock/labelfit"
	"github.com/poshstock/poshstock/middleware"
	"github.com/poshstock/poshstock/models"
)

// --- Mock Repository ---

type MockItemLookup struct {
	Items   []models.Item
	Err     error
	lastIDs []uint
}

func (m *MockItemLookup) GetItem(_ context.Context, userID, id uint) (*models.Item, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	for i := range m.Items {
		if m.Items[i].ID == id && m.Items[i].UserID == userID {
			return &m.Items[i], nil
		}
	}
	return nil, models.ErrItemNotFound
}

func (m *MockItemLookup) GetItems(_ context.Context, userID uint, ids []uint) ([]models.Item, error) {
	m.lastIDs = ids
	if m.Err != nil {
		return nil, m.Err
	}
	var out []models.Item
	for _, id := range ids {
		for _, it := range m.Items {
			if it.ID == id && it.UserID == userID {
				out = append(out, it)
			}
		}
	}
	return out, nil
}

func strPtr(s string) *string { return &s }

func newRouter(t *testing.T, lookup *MockItemLookup) http.Handler {
	d, err := DefaultsFromConfig(config.LabelsConfig{DPI: 300, Width: "40mm", Height: "30mm"})
	require.NoError(t, err)
	h := NewLabelHandler(lookup, labelfit.NewFitter(), d, slog.New(slog.NewTextHandler(io.Discard, nil)))

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middleware.WithUser(req.Context(), &models.User{ID: 1})))
		})
	})
	r.Get("/labels/print", h.HandlePrint)
	r.Get("/labels/{id}.png", h.HandleItemPNG)
	r.Get("/api/labels/render", h.HandleRender)
	return r
}

func fixtures() *MockItemLookup {
	return &MockItemLookup{Items: []models.Item{
		{ID: 1, UserID: 1, Title: "Coat", Barcode: strPtr("4006381333931")},
		{ID: 2, UserID: 1, Title: ""},
		{ID: 3, UserID: 2, Title: "Not mine", Barcode: strPtr("SKU3")},
	}}
}

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", target, nil))
	return rec
}

func TestDefaultsFromConfig(t *testing.T) {
	d, err := DefaultsFromConfig(config.LabelsConfig{DPI: 203, Width: "2.625in", Height: "1in"})
	require.NoError(t, err)
	assert.InDelta(t, 66.675, d.WidthMM, 1e-9)
	assert.InDelta(t, 25.4, d.HeightMM, 1e-9)

	_, err = DefaultsFromConfig(config.LabelsConfig{DPI: 300, Width: "wide", Height: "1in"})
	assert.ErrorIs(t, err, labelfit.ErrInvalidGeometry)
	_, err = DefaultsFromConfig(config.LabelsConfig{DPI: 0, Width: "1in", Height: "1in"})
	assert.ErrorIs(t, err, labelfit.ErrInvalidGeometry)
}

func TestHandleRender(t *testing.T) {
	testCases := []struct {
		name               string
		query              string
		expectedStatusCode int
		checkResponse      func(t *testing.T, rec *httptest.ResponseRecorder)
	}{
		{
			name:               "Default size fits an EAN-13",
			query:              "?code=4006381333931",
			expectedStatusCode: http.StatusOK,
			checkResponse: func(t *testing.T, rec *httptest.ResponseRecorder) {
				assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
				assert.Equal(t, "ean13", rec.Header().Get("X-Label-Symbology"))
				assert.Equal(t, "472x354", rec.Header().Get("X-Label-Target"))
				assert.Equal(t, "18", rec.Header().Get("X-Label-Attempts"))
				assert.Equal(t, "true", rec.Header().Get("X-Label-Fitted"))
				img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
				require.NoError(t, err)
				assert.LessOrEqual(t, img.Bounds().Dx(), 472)
				assert.LessOrEqual(t, img.Bounds().Dy(), 354)
			},
		},
		{
			name:               "Explicit QR at another resolution",
			query:              "?code=item-42&kind=qr&w=1in&h=1in&dpi=203&text=0",
			expectedStatusCode: http.StatusOK,
			checkResponse: func(t *testing.T, rec *httptest.ResponseRecorder) {
				assert.Equal(t, "qr", rec.Header().Get("X-Label-Symbology"))
				assert.Equal(t, "item42", rec.Header().Get("X-Label-Text"))
				assert.Equal(t, "203x203", rec.Header().Get("X-Label-Target"))
			},
		},
		{
			name:               "Preset size",
			query:              "?code=SKU1&size=2x1",
			expectedStatusCode: http.StatusOK,
			checkResponse: func(t *testing.T, rec *httptest.ResponseRecorder) {
				assert.Equal(t, "600x300", rec.Header().Get("X-Label-Target"))
				assert.Equal(t, "code128", rec.Header().Get("X-Label-Symbology"))
			},
		},
		{name: "Empty code", query: "?code=--", expectedStatusCode: http.StatusUnprocessableEntity},
		{name: "Unencodable code", query: "?code=%E3%82%B3%E3%83%BC%E3%83%89", expectedStatusCode: http.StatusUnprocessableEntity},
		{name: "Bad width", query: "?code=1&w=-2mm", expectedStatusCode: http.StatusBadRequest},
		{name: "Bad dpi", query: "?code=1&dpi=abc", expectedStatusCode: http.StatusBadRequest},
	}

	router := newRouter(t, fixtures())
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := get(router, "/api/labels/render"+tc.query)
			assert.Equal(t, tc.expectedStatusCode, rec.Code)
			if tc.checkResponse != nil {
				tc.checkResponse(t, rec)
			}
		})
	}
}

func TestHandleItemPNG(t *testing.T) {
	router := newRouter(t, fixtures())

	rec := get(router, "/labels/1.png")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "4006381333931", rec.Header().Get("X-Label-Text"))

	// Items without a barcode are labelled with their id.
	rec = get(router, "/labels/2.png")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-Label-Text"))
	assert.Equal(t, "code128", rec.Header().Get("X-Label-Symbology"))

	assert.Equal(t, http.StatusNotFound, get(router, "/labels/3.png").Code)
	assert.Equal(t, http.StatusBadRequest, get(router, "/labels/x.png").Code)
}

func TestHandlePrint(t *testing.T) {
	testCases := []struct {
		name               string
		query              string
		lookupErr          error
		expectedStatusCode int
		expectedLabels     int
		checkBody          func(t *testing.T, body string)
	}{
		{
			name:               "One label per item by default",
			query:              "?ids=1,2,3",
			expectedStatusCode: http.StatusOK,
			expectedLabels:     2,
			checkBody: func(t *testing.T, body string) {
				assert.Contains(t, body, "Coat")
				assert.Contains(t, body, "Untitled")
				assert.NotContains(t, body, "Not mine")
				assert.Contains(t, body, "--cols: 3;")
			},
		},
		{
			name:               "Copies and columns are clamped",
			query:              "?ids=1&copies=500&cols=9&size=avery5167",
			expectedStatusCode: http.StatusOK,
			expectedLabels:     maxCopies,
			checkBody: func(t *testing.T, body string) {
				assert.Contains(t, body, "--cols: 6;")
				assert.Contains(t, body, "--label-w: 1.75in;")
			},
		},
		{
			name:               "Titles hidden",
			query:              "?ids=1&show_text=0",
			expectedStatusCode: http.StatusOK,
			expectedLabels:     1,
			checkBody: func(t *testing.T, body string) {
				assert.NotContains(t, body, `class="title"`)
			},
		},
		{name: "Missing ids", query: "", expectedStatusCode: http.StatusBadRequest},
		{name: "Bad ids", query: "?ids=1,x", expectedStatusCode: http.StatusBadRequest},
		{name: "Bad copies", query: "?ids=1&copies=many", expectedStatusCode: http.StatusBadRequest},
		{name: "Repository error", query: "?ids=1", lookupErr: errors.New("db down"), expectedStatusCode: http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			lookup := fixtures()
			lookup.Err = tc.lookupErr
			rec := get(newRouter(t, lookup), "/labels/print"+tc.query)

			assert.Equal(t, tc.expectedStatusCode, rec.Code)
			if tc.expectedStatusCode != http.StatusOK {
				return
			}
			body := rec.Body.String()
			assert.Equal(t, tc.expectedLabels, strings.Count(body, `class="label"`))
			assert.Equal(t, tc.expectedLabels, strings.Count(body, `src="data:image/png;base64,`))
			if tc.checkBody != nil {
				tc.checkBody(t, body)
			}
		})
	}
}
