package categories

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/poshstock/poshstock/app/respond"
	"github.com/poshstock/poshstock/middleware"
	"github.com/poshstock/poshstock/models"
)

type CategoryResponse struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type CreateResponse struct {
	OK      bool   `json:"ok"`
	ID      uint   `json:"id"`
	Name    string `json:"name"`
	Created bool   `json:"created"`
}

type CategoryProvider interface {
	ListCategories(ctx context.Context, userID uint) ([]models.Category, error)
	GetCategoryByName(ctx context.Context, userID uint, name string) (*models.Category, error)
	CreateCategory(ctx context.Context, category *models.Category) error
	DeleteCategory(ctx context.Context, userID, id uint) error
}

type CategoryHandler struct {
	repo CategoryProvider
	log  *slog.Logger
}

func NewCategoryHandler(r CategoryProvider, log *slog.Logger) *CategoryHandler {
	return &CategoryHandler{repo: r, log: log}
}

func (h *CategoryHandler) HandleGetAll(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	categories, err := h.repo.ListCategories(r.Context(), user.ID)
	if err != nil {
		h.log.Error("failed to list categories", "user_id", user.ID, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "failed to fetch categories")
		return
	}

	response := make([]CategoryResponse, len(categories))
	for i, c := range categories {
		response[i] = CategoryResponse{
			ID:   c.ID,
			Name: c.Name,
		}
	}

	respond.WriteJSON(w, http.StatusOK, response)
}

// HandleCreate creates a category by name. Asking for an existing name is
// not an error: the existing category comes back with created=false.
func (h *CategoryHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	fields, err := respond.ReadFields(r)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	name := fields.Trimmed("name")
	if name == "" {
		respond.WriteError(w, http.StatusBadRequest, "Name required")
		return
	}

	existing, err := h.repo.GetCategoryByName(r.Context(), user.ID, name)
	switch {
	case err == nil:
		respond.WriteJSON(w, http.StatusOK, CreateResponse{OK: true, ID: existing.ID, Name: existing.Name})
		return
	case !errors.Is(err, models.ErrCategoryNotFound):
		h.log.Error("failed to look up category", "name", name, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "Failed to create category")
		return
	}

	category := &models.Category{
		UserID: user.ID,
		Name:   name,
	}

	if err := h.repo.CreateCategory(r.Context(), category); err != nil {
		if errors.Is(err, models.ErrDuplicateCategory) {
			respond.WriteError(w, http.StatusConflict, "That category already exists.")
			return
		}
		h.log.Error("failed to create category", "name", name, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "Failed to create category")
		return
	}

	h.log.Info("category created", "user_id", user.ID, "category_id", category.ID)
	respond.WriteJSON(w, http.StatusCreated, CreateResponse{OK: true, ID: category.ID, Name: category.Name, Created: true})
}

// HandleDelete removes a category; its items stay, uncategorized.
func (h *CategoryHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "Invalid category id")
		return
	}

	if err := h.repo.DeleteCategory(r.Context(), user.ID, uint(id)); err != nil {
		if errors.Is(err, models.ErrCategoryNotFound) {
			respond.WriteError(w, http.StatusNotFound, "Category not found")
			return
		}
		h.log.Error("failed to delete category", "category_id", id, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "Failed to delete category")
		return
	}

	respond.WriteJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"message": "Category deleted.",
	})
}
