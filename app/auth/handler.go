package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/poshstock/poshstock/app/respond"
	"github.com/poshstock/poshstock/middleware"
	"github.com/poshstock/poshstock/models"
)

type UserResponse struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
}

type UserProvider interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

type SessionManager interface {
	Start(ctx context.Context, w http.ResponseWriter, userID uint) error
	End(w http.ResponseWriter, r *http.Request) error
}

type AuthHandler struct {
	users    UserProvider
	sessions SessionManager
	cost     int
	log      *slog.Logger
}

func NewAuthHandler(u UserProvider, s SessionManager, log *slog.Logger) *AuthHandler {
	return &AuthHandler{
		users:    u,
		sessions: s,
		cost:     bcrypt.DefaultCost,
		log:      log,
	}
}

func credentials(r *http.Request) (email, password string, err error) {
	fields, err := respond.ReadFields(r)
	if err != nil {
		return "", "", err
	}
	return strings.ToLower(fields.Trimmed("email")), fields.Get("password"), nil
}

func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	email, password, err := credentials(r)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if email == "" || password == "" {
		respond.WriteError(w, http.StatusBadRequest, "Email and password required")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			respond.WriteError(w, http.StatusBadRequest, "Password is too long")
			return
		}
		h.log.Error("failed to hash password", "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	user := &models.User{Email: email, PasswordHash: string(hash)}
	if err := h.users.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, models.ErrEmailTaken) {
			respond.WriteError(w, http.StatusConflict, "Email already registered")
			return
		}
		h.log.Error("failed to create user", "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	h.log.Info("user registered", "user_id", user.ID)
	respond.WriteJSON(w, http.StatusCreated, UserResponse{ID: user.ID, Email: user.Email})
}

func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	email, password, err := credentials(r)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.users.GetUserByEmail(r.Context(), email)
	if err != nil && !errors.Is(err, models.ErrUserNotFound) {
		h.log.Error("failed to load user", "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "Login failed")
		return
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		respond.WriteError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if err := h.sessions.Start(r.Context(), w, user.ID); err != nil {
		h.log.Error("failed to start session", "user_id", user.ID, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	respond.WriteJSON(w, http.StatusOK, UserResponse{ID: user.ID, Email: user.Email})
}

func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.End(w, r); err != nil {
		// The cookie is already cleared; the row will expire on its own.
		h.log.Warn("failed to delete session", "error", err)
	}
	respond.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respond.WriteError(w, http.StatusUnauthorized, "Login required")
		return
	}
	respond.WriteJSON(w, http.StatusOK, UserResponse{ID: user.ID, Email: user.Email})
}
