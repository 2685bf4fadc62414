// Package labels serves printable barcode label sheets and single label
// images.
package labels

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/poshstock/poshstock/app/respond"
	"github.com/poshstock/poshstock/config"
	"github.com/poshstock/poshstock/labelfit"
	"github.com/poshstock/poshstock/middleware"
	"github.com/poshstock/poshstock/models"
)

//go:embed templates/print.html
var templates embed.FS

var printTemplate = template.Must(template.ParseFS(templates, "templates/print.html"))

const (
	maxCopies = 100
	maxCols   = 6
	maxDPI    = 2400
)

type ItemLookup interface {
	GetItem(ctx context.Context, userID, id uint) (*models.Item, error)
	GetItems(ctx context.Context, userID uint, ids []uint) ([]models.Item, error)
}

// Defaults is the label size used when a request does not name one.
type Defaults struct {
	WidthMM  float64
	HeightMM float64
	DPI      int
}

// DefaultsFromConfig parses the configured label size.
func DefaultsFromConfig(cfg config.LabelsConfig) (Defaults, error) {
	w, err := labelfit.ParseLength(cfg.Width)
	if err != nil {
		return Defaults{}, fmt.Errorf("labels width: %w", err)
	}
	h, err := labelfit.ParseLength(cfg.Height)
	if err != nil {
		return Defaults{}, fmt.Errorf("labels height: %w", err)
	}
	if cfg.DPI <= 0 || cfg.DPI > maxDPI {
		return Defaults{}, fmt.Errorf("%w: labels dpi %d", labelfit.ErrInvalidGeometry, cfg.DPI)
	}
	return Defaults{WidthMM: w, HeightMM: h, DPI: cfg.DPI}, nil
}

type LabelHandler struct {
	items    ItemLookup
	fitter   *labelfit.Fitter
	defaults Defaults
	log      *slog.Logger
}

func NewLabelHandler(items ItemLookup, f *labelfit.Fitter, d Defaults, log *slog.Logger) *LabelHandler {
	return &LabelHandler{
		items:    items,
		fitter:   f,
		defaults: d,
		log:      log,
	}
}

type sheetLabel struct {
	Title string
	Code  string
	Image template.URL
}

type sheetData struct {
	Sheet    labelfit.Preset
	Cols     int
	ShowText bool
	Labels   []sheetLabel
}

func boundedInt(raw string, def, lo, hi int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	return max(lo, min(hi, n)), nil
}

func parseBool(raw string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return def
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// request builds a fitter request from w, h, dpi, text and kind query
// values, falling back to the configured defaults.
func (h *LabelHandler) request(r *http.Request, code string, size labelfit.Preset) (labelfit.Request, error) {
	q := r.URL.Query()
	req := labelfit.Request{
		Code:      code,
		WidthMM:   h.defaults.WidthMM,
		HeightMM:  h.defaults.HeightMM,
		DPI:       h.defaults.DPI,
		WriteText: parseBool(q.Get("text"), true),
		Symbology: labelfit.ParseSymbology(q.Get("kind")),
	}

	if size.Name != "" {
		w, hh, err := size.SizeMM()
		if err != nil {
			return req, err
		}
		req.WidthMM, req.HeightMM = w, hh
	}
	if raw := q.Get("w"); raw != "" {
		w, err := labelfit.ParseLength(raw)
		if err != nil {
			return req, err
		}
		req.WidthMM = w
	}
	if raw := q.Get("h"); raw != "" {
		hh, err := labelfit.ParseLength(raw)
		if err != nil {
			return req, err
		}
		req.HeightMM = hh
	}
	if raw := q.Get("dpi"); raw != "" {
		dpi, err := strconv.Atoi(raw)
		if err != nil || dpi <= 0 || dpi > maxDPI {
			return req, fmt.Errorf("%w: dpi %q", labelfit.ErrInvalidGeometry, raw)
		}
		req.DPI = dpi
	}
	return req, nil
}

func (h *LabelHandler) writeFitError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, labelfit.ErrInvalidGeometry):
		respond.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, labelfit.ErrEmptyCode), errors.Is(err, labelfit.ErrUnencodable):
		respond.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.log.Error("failed to render label", "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "Failed to render label")
	}
}

func writePNG(w http.ResponseWriter, res *labelfit.Result) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(res.PNG)))
	w.Header().Set("X-Label-Symbology", string(res.Symbology))
	w.Header().Set("X-Label-Text", res.Text)
	w.Header().Set("X-Label-Module-Width", strconv.FormatFloat(res.ModuleWidthMM, 'f', 4, 64))
	w.Header().Set("X-Label-Size", fmt.Sprintf("%dx%d", res.Width, res.Height))
	w.Header().Set("X-Label-Target", fmt.Sprintf("%dx%d", res.TargetWidth, res.TargetHeight))
	w.Header().Set("X-Label-Attempts", strconv.Itoa(res.Attempts))
	w.Header().Set("X-Label-Fitted", strconv.FormatBool(res.Fitted))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.PNG)
}

func itemCode(item *models.Item) string {
	if code := item.BarcodeValue(); code != "" {
		return code
	}
	return strconv.FormatUint(uint64(item.ID), 10)
}

// HandlePrint renders an HTML sheet of labels for ?ids=1,2,5.
func (h *LabelHandler) HandlePrint(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	q := r.URL.Query()

	idsParam := strings.TrimSpace(q.Get("ids"))
	if idsParam == "" {
		respond.WriteError(w, http.StatusBadRequest, "Missing ?ids=...")
		return
	}
	var ids []uint
	for _, part := range strings.Split(idsParam, ",") {
		if part = strings.TrimSpace(part); part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			respond.WriteError(w, http.StatusBadRequest, "Bad ids")
			return
		}
		ids = append(ids, uint(id))
	}

	copies, err := boundedInt(q.Get("copies"), 1, 1, maxCopies)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "Bad copies")
		return
	}
	cols, err := boundedInt(q.Get("cols"), 3, 1, maxCols)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "Bad cols")
		return
	}
	showText := parseBool(q.Get("show_text"), true)

	sheet, ok := labelfit.LookupPreset(q.Get("size"))
	if !ok {
		sheet, _ = labelfit.LookupPreset("avery5160")
		sheet.Name = ""
		sheet.Width = strconv.FormatFloat(h.defaults.WidthMM, 'f', 2, 64) + "mm"
		sheet.Height = strconv.FormatFloat(h.defaults.HeightMM, 'f', 2, 64) + "mm"
	}

	items, err := h.items.GetItems(r.Context(), user.ID, ids)
	if err != nil {
		h.log.Error("failed to load items for labels", "user_id", user.ID, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "Failed to load items")
		return
	}

	base, err := h.request(r, "", sheet)
	if err != nil {
		h.writeFitError(w, err)
		return
	}
	base.WriteText = showText

	data := sheetData{Sheet: sheet, Cols: cols, ShowText: showText}
	for i := range items {
		req := base
		req.Code = itemCode(&items[i])
		res, err := h.fitter.Fit(req)
		if err != nil {
			h.writeFitError(w, err)
			return
		}

		title := items[i].Title
		if title == "" {
			title = "Untitled"
		}
		label := sheetLabel{
			Title: title,
			Code:  res.Text,
			Image: template.URL(res.DataURI()),
		}
		for c := 0; c < copies; c++ {
			data.Labels = append(data.Labels, label)
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := printTemplate.Execute(w, data); err != nil {
		h.log.Error("failed to render label sheet", "error", err)
	}
}

// HandleItemPNG renders one item's label.
func (h *LabelHandler) HandleItemPNG(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "Invalid item id")
		return
	}

	item, err := h.items.GetItem(r.Context(), user.ID, uint(id))
	if err != nil {
		if errors.Is(err, models.ErrItemNotFound) {
			respond.WriteError(w, http.StatusNotFound, "Item not found")
			return
		}
		h.log.Error("failed to load item for label", "item_id", id, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "Failed to load item")
		return
	}

	size, _ := labelfit.LookupPreset(r.URL.Query().Get("size"))
	req, err := h.request(r, itemCode(item), size)
	if err != nil {
		h.writeFitError(w, err)
		return
	}
	res, err := h.fitter.Fit(req)
	if err != nil {
		h.writeFitError(w, err)
		return
	}
	writePNG(w, res)
}

// HandleRender renders ?code= without touching stored items.
func (h *LabelHandler) HandleRender(w http.ResponseWriter, r *http.Request) {
	size, _ := labelfit.LookupPreset(r.URL.Query().Get("size"))
	req, err := h.request(r, r.URL.Query().Get("code"), size)
	if err != nil {
		h.writeFitError(w, err)
		return
	}
	res, err := h.fitter.Fit(req)
	if err != nil {
		h.writeFitError(w, err)
		return
	}
	if !res.Fitted {
		h.log.Debug("label rendered with fallback parameters", "code", res.Text, "target", fmt.Sprintf("%dx%d", res.TargetWidth, res.TargetHeight))
	}
	writePNG(w, res)
}
