// Package app wires the HTTP handlers into a router.
package app

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"gorm.io/gorm"

	"github.com/poshstock/poshstock/app/auth"
	"github.com/poshstock/poshstock/app/categories"
	"github.com/poshstock/poshstock/app/health"
	"github.com/poshstock/poshstock/app/items"
	"github.com/poshstock/poshstock/app/labels"
	"github.com/poshstock/poshstock/app/quote"
	"github.com/poshstock/poshstock/app/respond"
	"github.com/poshstock/poshstock/config"
	"github.com/poshstock/poshstock/labelfit"
	"github.com/poshstock/poshstock/middleware"
	"github.com/poshstock/poshstock/models"
	"github.com/poshstock/poshstock/uploads"
)

// requestTimeout bounds a request, label sheets included.
const requestTimeout = 60 * time.Second

// NewRouter builds the application's HTTP handler.
func NewRouter(cfg *config.Config, db *gorm.DB, log *slog.Logger) (http.Handler, error) {
	schedule, err := cfg.Schedule()
	if err != nil {
		return nil, err
	}
	labelDefaults, err := labels.DefaultsFromConfig(cfg.Labels)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql handle: %w", err)
	}

	// Initialize repositories
	usersRepo := models.NewUsersRepository(db)
	categoriesRepo := models.NewCategoriesRepository(db)
	itemsRepo := models.NewItemsRepository(db)
	photos := uploads.NewStore(cfg.Uploads)

	sessions := middleware.NewSessions(usersRepo, cfg.SecretKey)
	sessions.SetSecure(cfg.Server.SecureCookies)

	// Initialize handlers
	healthHandler := health.NewHealthHandler(sqlDB, log)
	authHandler := auth.NewAuthHandler(usersRepo, sessions, log)
	categoryHandler := categories.NewCategoryHandler(categoriesRepo, log)
	itemHandler := items.NewItemHandler(itemsRepo, categoriesRepo, photos, schedule, log)
	labelHandler := labels.NewLabelHandler(itemsRepo, labelfit.NewFitter(), labelDefaults, log)
	quoteHandler := quote.NewPricingHandler(schedule)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(requestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Location", "X-Label-Symbology", "X-Label-Fitted", "X-Label-Target"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", healthHandler.HandleHealthz)

	r.Post("/register", authHandler.HandleRegister)
	r.Post("/login", authHandler.HandleLogin)
	r.Post("/logout", authHandler.HandleLogout)

	r.Get("/api/pricing/quote", quoteHandler.HandleQuote)
	r.Get("/api/pricing/breakeven", quoteHandler.HandleBreakEven)

	// Photos are stored as "<prefix>/<name>" and served from the same path.
	prefix := "/" + photos.Prefix() + "/"
	r.Handle(prefix+"*", http.StripPrefix(prefix, http.FileServer(http.Dir(photos.Dir()))))

	r.Group(func(r chi.Router) {
		r.Use(sessions.RequireUser)
		// Room for the form fields around a maximum-size photo.
		r.Use(chimiddleware.RequestSize(cfg.Uploads.MaxBytes + respond.MaxFormMemory))

		r.Get("/api/me", authHandler.HandleMe)

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", categoryHandler.HandleGetAll)
			r.Post("/", categoryHandler.HandleCreate)
			r.Post("/{id}/delete", categoryHandler.HandleDelete)
			r.Post("/{id}/items", itemHandler.HandleCreateInCategory)
		})

		r.Route("/items", func(r chi.Router) {
			r.Get("/", itemHandler.HandleList)
			r.Post("/", itemHandler.HandleCreate)
			r.Post("/bulk_delete", itemHandler.HandleBulkDelete)
			r.Get("/by_barcode/{barcode}", itemHandler.HandleByBarcode)
			r.Get("/{id}", itemHandler.HandleGet)
			r.Post("/{id}/edit", itemHandler.HandleEdit)
			r.Post("/{id}/delete", itemHandler.HandleDelete)
		})

		r.Get("/labels/print", labelHandler.HandlePrint)
		r.Get("/labels/{id}.png", labelHandler.HandleItemPNG)

		r.Get("/api/items/lookup", itemHandler.HandleLookup)
		r.Get("/api/labels/render", labelHandler.HandleRender)
	})

	return r, nil
}
