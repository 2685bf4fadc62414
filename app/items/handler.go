package items

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/poshstock/poshstock/app/respond"
	"github.com/poshstock/poshstock/labelfit"
	"github.com/poshstock/poshstock/middleware"
	"github.com/poshstock/poshstock/models"
	"github.com/poshstock/poshstock/pricing"
	"github.com/poshstock/poshstock/uploads"
)

type ItemProvider interface {
	ListItems(ctx context.Context, userID uint, filters models.ItemFilters) ([]models.Item, error)
	GetItem(ctx context.Context, userID, id uint) (*models.Item, error)
	GetItemByBarcode(ctx context.Context, userID uint, barcode string) (*models.Item, error)
	BarcodeTaken(ctx context.Context, userID uint, barcode string, excludeID uint) (bool, error)
	CreateItem(ctx context.Context, item *models.Item) error
	UpdateItem(ctx context.Context, item *models.Item) error
	DeleteItem(ctx context.Context, userID, id uint) error
	DeleteItems(ctx context.Context, userID uint, ids []uint) (int64, error)
}

type CategoryLookup interface {
	GetCategory(ctx context.Context, userID, id uint) (*models.Category, error)
}

// PhotoStore saves an uploaded photo and returns its path under the
// static root.
type PhotoStore interface {
	Save(filename string, r io.Reader) (string, error)
}

type ItemHandler struct {
	repo       ItemProvider
	categories CategoryLookup
	photos     PhotoStore
	schedule   pricing.Schedule
	log        *slog.Logger
}

func NewItemHandler(r ItemProvider, c CategoryLookup, p PhotoStore, s pricing.Schedule, log *slog.Logger) *ItemHandler {
	return &ItemHandler{
		repo:       r,
		categories: c,
		photos:     p,
		schedule:   s,
		log:        log,
	}
}

// requestError is a client mistake; its message is safe to return.
type requestError struct {
	status int
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error { return &requestError{status: http.StatusBadRequest, msg: msg} }

func pathID(r *http.Request, key string) (uint, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, key), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", chi.URLParam(r, key))
	}
	return uint(id), nil
}

// parseIDs parses "1,2,3". Blank entries are skipped; anything else that
// is not a positive integer fails the whole list.
func parseIDs(raw string) ([]uint, error) {
	var ids []uint
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 64)
		if err != nil || id == 0 {
			return nil, fmt.Errorf("invalid id %q", part)
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}

// parseDate returns nil for blank or malformed input.
func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil
	}
	return &t
}

func parseMoney(s string) decimal.NullDecimal {
	d := pricing.ParseOptionalMoney(s)
	if d.Valid {
		d.Decimal = d.Decimal.Round(2)
	}
	return d
}

func (h *ItemHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	var filters models.ItemFilters
	if cStr := r.URL.Query().Get("category"); cStr != "" {
		if c, err := strconv.ParseUint(cStr, 10, 64); err == nil && c > 0 {
			id := uint(c)
			filters.CategoryID = &id
		}
	}

	res, err := h.repo.ListItems(r.Context(), user.ID, filters)
	if err != nil {
		h.log.Error("failed to list items", "user_id", user.ID, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "failed to fetch items")
		return
	}

	items := make([]ItemResponse, len(res))
	for i := range res {
		items[i] = toResponse(&res[i], h.schedule)
	}

	respond.WriteJSON(w, http.StatusOK, Response{
		Total: len(items),
		Items: items,
	})
}

func (h *ItemHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	id, err := pathID(r, "id")
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "Invalid item id")
		return
	}

	item, err := h.repo.GetItem(r.Context(), user.ID, id)
	if err != nil {
		h.writeLookupError(w, err, id)
		return
	}

	respond.WriteJSON(w, http.StatusOK, toResponse(item, h.schedule))
}

func (h *ItemHandler) writeLookupError(w http.ResponseWriter, err error, id uint) {
	if errors.Is(err, models.ErrItemNotFound) {
		respond.WriteError(w, http.StatusNotFound, "Item not found")
		return
	}
	h.log.Error("failed to load item", "item_id", id, "error", err)
	respond.WriteError(w, http.StatusInternalServerError, "failed to fetch item")
}

// HandleCreate adds an item from the full item form.
func (h *ItemHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	fields, err := respond.ReadFields(r)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	title := fields.Trimmed("title")
	if title == "" {
		respond.WriteError(w, http.StatusBadRequest, "Title is required.")
		return
	}

	item := &models.Item{UserID: user.ID, Title: title}
	if raw := fields.Trimmed("category_id"); raw != "" {
		if err := h.setCategory(r.Context(), item, raw); err != nil {
			h.writeFormError(w, err)
			return
		}
	}
	h.create(w, r, item, fields)
}

// HandleCreateInCategory is the scanner path: the barcode is required and
// the category comes from the URL.
func (h *ItemHandler) HandleCreateInCategory(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	catID, err := pathID(r, "id")
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "Invalid category id")
		return
	}
	category, err := h.categories.GetCategory(r.Context(), user.ID, catID)
	if err != nil {
		if errors.Is(err, models.ErrCategoryNotFound) {
			respond.WriteError(w, http.StatusNotFound, "Category not found")
			return
		}
		h.log.Error("failed to load category", "category_id", catID, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "Failed to create item")
		return
	}

	fields, err := respond.ReadFields(r)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if labelfit.Normalize(fields.Get("barcode")) == "" {
		respond.WriteError(w, http.StatusBadRequest, "Barcode required")
		return
	}

	title := fields.Trimmed("title")
	if title == "" {
		title = fields.Trimmed("name")
	}
	if title == "" {
		title = "Untitled"
	}

	item := &models.Item{
		UserID:     user.ID,
		CategoryID: &category.ID,
		Category:   category,
		Title:      title,
	}
	h.create(w, r, item, fields)
}

func (h *ItemHandler) create(w http.ResponseWriter, r *http.Request, item *models.Item, fields respond.Fields) {
	if code := labelfit.Normalize(fields.Get("barcode")); code != "" {
		existing, err := h.repo.GetItemByBarcode(r.Context(), item.UserID, code)
		switch {
		case err == nil:
			respond.WriteJSON(w, http.StatusConflict, map[string]any{
				"error": "An item with that barcode already exists.",
				"id":    existing.ID,
			})
			return
		case !errors.Is(err, models.ErrItemNotFound):
			h.log.Error("failed to check barcode", "barcode", code, "error", err)
			respond.WriteError(w, http.StatusInternalServerError, "Failed to create item")
			return
		}
		item.Barcode = &code
	}

	item.Notes = fields.Trimmed("notes")
	item.Brand = fields.Trimmed("brand")
	item.Size = fields.Trimmed("size")
	item.Color = fields.Trimmed("color")
	item.Condition = fields.Trimmed("condition")
	item.PurchaseSource = fields.Trimmed("purchase_source")
	item.PurchaseDate = parseDate(fields.Get("purchase_date"))
	item.SoldDate = parseDate(fields.Get("sold_date"))
	item.SoldPrice = parseMoney(fields.Get("sold_price"))

	item.PurchasePrice = decimal.Zero
	if pp := parseMoney(fields.Get("purchase_price")); pp.Valid {
		item.PurchasePrice = pp.Decimal
	}
	item.ListPrice = parseMoney(fields.Get("list_price"))
	if !item.ListPrice.Valid {
		item.ListPrice = item.BreakEven(h.schedule)
	}

	photo, err := h.savePhoto(r)
	if err != nil {
		h.writeFormError(w, err)
		return
	}
	item.PhotoPath = photo

	if err := h.repo.CreateItem(r.Context(), item); err != nil {
		if errors.Is(err, models.ErrDuplicateBarcode) {
			respond.WriteError(w, http.StatusConflict, "Barcode already exists")
			return
		}
		h.log.Error("failed to create item", "user_id", item.UserID, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "Failed to create item")
		return
	}

	h.log.Info("item created", "user_id", item.UserID, "item_id", item.ID)
	w.Header().Set("Location", fmt.Sprintf("/items/%d", item.ID))
	respond.WriteJSON(w, http.StatusCreated, toResponse(item, h.schedule))
}

// HandleEdit applies the fields present in the request and leaves the rest
// untouched. A list price that is sent blank or malformed is replaced by
// the break-even for the (possibly new) purchase price.
func (h *ItemHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	id, err := pathID(r, "id")
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "Invalid item id")
		return
	}

	item, err := h.repo.GetItem(r.Context(), user.ID, id)
	if err != nil {
		h.writeLookupError(w, err, id)
		return
	}

	fields, err := respond.ReadFields(r)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if t := fields.Trimmed("title"); t != "" {
		item.Title = t
	}
	for key, dst := range map[string]*string{
		"notes":           &item.Notes,
		"brand":           &item.Brand,
		"size":            &item.Size,
		"color":           &item.Color,
		"condition":       &item.Condition,
		"purchase_source": &item.PurchaseSource,
	} {
		if fields.Has(key) {
			*dst = fields.Trimmed(key)
		}
	}

	if fields.Has("barcode") {
		if code := labelfit.Normalize(fields.Get("barcode")); code == "" {
			item.Barcode = nil
		} else if code != item.BarcodeValue() {
			taken, err := h.repo.BarcodeTaken(r.Context(), user.ID, code, item.ID)
			if err != nil {
				h.log.Error("failed to check barcode", "barcode", code, "error", err)
				respond.WriteError(w, http.StatusInternalServerError, "Failed to update item")
				return
			}
			if taken {
				respond.WriteError(w, http.StatusConflict, "Another item already has that barcode.")
				return
			}
			item.Barcode = &code
		}
	}

	if raw := fields.Trimmed("category_id"); raw != "" {
		if err := h.setCategory(r.Context(), item, raw); err != nil {
			h.writeFormError(w, err)
			return
		}
	}

	if pp := parseMoney(fields.Get("purchase_price")); pp.Valid {
		item.PurchasePrice = pp.Decimal
	}
	if fields.Has("list_price") {
		item.ListPrice = parseMoney(fields.Get("list_price"))
		if !item.ListPrice.Valid {
			item.ListPrice = item.BreakEven(h.schedule)
		}
	}
	if fields.Has("purchase_date") {
		item.PurchaseDate = parseDate(fields.Get("purchase_date"))
	}
	if sp := parseMoney(fields.Get("sold_price")); sp.Valid {
		item.SoldPrice = sp
	}
	if sd := parseDate(fields.Get("sold_date")); sd != nil {
		item.SoldDate = sd
	}

	photo, err := h.savePhoto(r)
	if err != nil {
		h.writeFormError(w, err)
		return
	}
	if photo != "" {
		item.PhotoPath = photo
	}

	if err := h.repo.UpdateItem(r.Context(), item); err != nil {
		if errors.Is(err, models.ErrDuplicateBarcode) {
			respond.WriteError(w, http.StatusConflict, "Could not update item (barcode duplicate).")
			return
		}
		h.log.Error("failed to update item", "item_id", item.ID, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "Failed to update item")
		return
	}

	respond.WriteJSON(w, http.StatusOK, toResponse(item, h.schedule))
}

func (h *ItemHandler) setCategory(ctx context.Context, item *models.Item, raw string) error {
	cid, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return badRequest("Invalid category")
	}
	category, err := h.categories.GetCategory(ctx, item.UserID, uint(cid))
	if errors.Is(err, models.ErrCategoryNotFound) {
		return badRequest("Invalid category")
	}
	if err != nil {
		return fmt.Errorf("load category %d: %w", cid, err)
	}
	item.CategoryID = &category.ID
	item.Category = category
	return nil
}

// savePhoto stores the "photo" part of a multipart request. It returns ""
// when none was sent.
func (h *ItemHandler) savePhoto(r *http.Request) (string, error) {
	if r.MultipartForm == nil {
		return "", nil
	}
	file, header, err := r.FormFile("photo")
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", badRequest("Invalid photo upload")
	}
	defer file.Close()
	if header.Filename == "" {
		return "", nil
	}

	rel, err := h.photos.Save(header.Filename, file)
	switch {
	case errors.Is(err, uploads.ErrExtensionNotAllowed):
		return "", badRequest("Photo not saved (file type not allowed).")
	case errors.Is(err, uploads.ErrTooLarge):
		return "", &requestError{status: http.StatusRequestEntityTooLarge, msg: "Photo is too large."}
	case err != nil:
		return "", fmt.Errorf("save photo: %w", err)
	}
	return rel, nil
}

func (h *ItemHandler) writeFormError(w http.ResponseWriter, err error) {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		respond.WriteError(w, reqErr.status, reqErr.msg)
		return
	}
	h.log.Error("failed to process item form", "error", err)
	respond.WriteError(w, http.StatusInternalServerError, "Failed to save item")
}

func (h *ItemHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	id, err := pathID(r, "id")
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "Invalid item id")
		return
	}

	if err := h.repo.DeleteItem(r.Context(), user.ID, id); err != nil {
		h.writeLookupError(w, err, id)
		return
	}

	respond.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// HandleBulkDelete deletes ids=1,2,3. Ids that are not the user's are
// ignored.
func (h *ItemHandler) HandleBulkDelete(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	fields, err := respond.ReadFields(r)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ids, err := parseIDs(fields.Get("ids"))
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "Invalid selection.")
		return
	}

	deleted, err := h.repo.DeleteItems(r.Context(), user.ID, ids)
	if err != nil {
		h.log.Error("failed to delete items", "user_id", user.ID, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "Failed to delete items")
		return
	}

	respond.WriteJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"deleted": deleted,
	})
}

type LookupResponse struct {
	Found bool `json:"found"`
	ID    uint `json:"id,omitempty"`
}

// HandleLookup tells the scanner whether a barcode is already in stock.
func (h *ItemHandler) HandleLookup(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	code := labelfit.Normalize(r.URL.Query().Get("barcode"))
	if code == "" {
		respond.WriteJSON(w, http.StatusOK, LookupResponse{})
		return
	}

	item, err := h.repo.GetItemByBarcode(r.Context(), user.ID, code)
	switch {
	case errors.Is(err, models.ErrItemNotFound):
		respond.WriteJSON(w, http.StatusOK, LookupResponse{})
	case err != nil:
		h.log.Error("failed to look up barcode", "barcode", code, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "failed to look up barcode")
	default:
		respond.WriteJSON(w, http.StatusOK, LookupResponse{Found: true, ID: item.ID})
	}
}

// HandleByBarcode redirects to the item with the barcode.
func (h *ItemHandler) HandleByBarcode(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	raw, err := url.PathUnescape(chi.URLParam(r, "barcode"))
	if err != nil {
		raw = chi.URLParam(r, "barcode")
	}
	code := labelfit.Normalize(raw)
	if code == "" {
		respond.WriteError(w, http.StatusNotFound, "Item not found")
		return
	}

	item, err := h.repo.GetItemByBarcode(r.Context(), user.ID, code)
	if err != nil {
		h.writeLookupError(w, err, 0)
		return
	}

	http.Redirect(w, r, fmt.Sprintf("/items/%d", item.ID), http.StatusSeeOther)
}
