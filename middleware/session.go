package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"

	"github.com/poshstock/poshstock/app/respond"
	"github.com/poshstock/poshstock/models"
)

// CookieName is the session cookie.
const CookieName = "poshstock_session"

// DefaultSessionTTL is how long a login lasts.
const DefaultSessionTTL = 30 * 24 * time.Hour

type userKey struct{}

// SessionStore persists sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, session *models.Session) error
	GetSessionUser(ctx context.Context, token string, now time.Time) (*models.User, error)
	DeleteSession(ctx context.Context, token string) error
}

// Sessions issues signed session cookies backed by a SessionStore.
type Sessions struct {
	store  SessionStore
	codec  *securecookie.SecureCookie
	ttl    time.Duration
	now    func() time.Time
	secure bool
}

func NewSessions(store SessionStore, secret string) *Sessions {
	codec := securecookie.New([]byte(secret), nil).
		MaxAge(int(DefaultSessionTTL / time.Second)).
		SetSerializer(securecookie.JSONEncoder{})
	return &Sessions{
		store: store,
		codec: codec,
		ttl:   DefaultSessionTTL,
		now:   time.Now,
	}
}

// SetSecure marks cookies Secure, for deployments behind TLS.
func (s *Sessions) SetSecure(secure bool) { s.secure = secure }

func (s *Sessions) sign(token string) (string, error) {
	return s.codec.Encode(CookieName, token)
}

// verify returns the token inside a cookie value if its signature holds.
func (s *Sessions) verify(value string) (string, bool) {
	var token string
	if err := s.codec.Decode(CookieName, value, &token); err != nil || token == "" {
		return "", false
	}
	return token, true
}

// Start creates a session for userID and sets the cookie.
func (s *Sessions) Start(ctx context.Context, w http.ResponseWriter, userID uint) error {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	expires := s.now().Add(s.ttl)
	value, err := s.sign(token)
	if err != nil {
		return fmt.Errorf("sign session cookie: %w", err)
	}
	if err := s.store.CreateSession(ctx, &models.Session{Token: token, UserID: userID, ExpiresAt: expires}); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// End deletes the request's session, if any, and clears the cookie.
func (s *Sessions) End(w http.ResponseWriter, r *http.Request) error {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	c, err := r.Cookie(CookieName)
	if err != nil {
		return nil
	}
	token, ok := s.verify(c.Value)
	if !ok {
		return nil
	}
	return s.store.DeleteSession(r.Context(), token)
}

// Load resolves the request's user, if it carries a valid session cookie.
func (s *Sessions) Load(r *http.Request) (*models.User, error) {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return nil, models.ErrSessionNotFound
	}
	token, ok := s.verify(c.Value)
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	return s.store.GetSessionUser(r.Context(), token, s.now())
}

// RequireUser rejects requests without a valid session with 401.
func (s *Sessions) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := s.Load(r)
		if err != nil {
			if !errors.Is(err, models.ErrSessionNotFound) {
				respond.WriteError(w, http.StatusInternalServerError, "Internal server error")
				return
			}
			respond.WriteError(w, http.StatusUnauthorized, "Login required")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// WithUser returns a context carrying user.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFromContext returns the user set by RequireUser.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(userKey{}).(*models.User)
	return u, ok && u != nil
}
