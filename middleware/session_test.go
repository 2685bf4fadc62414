package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poshstock/poshstock/models"
)

// --- Mock Store ---

type MockSessionStore struct {
	Sessions map[string]models.Session
	Users    map[uint]models.User
	Err      error
}

func newMockStore() *MockSessionStore {
	return &MockSessionStore{
		Sessions: map[string]models.Session{},
		Users:    map[uint]models.User{7: {ID: 7, Email: "erin@example.com"}},
	}
}

func (m *MockSessionStore) CreateSession(_ context.Context, s *models.Session) error {
	if m.Err != nil {
		return m.Err
	}
	m.Sessions[s.Token] = *s
	return nil
}

func (m *MockSessionStore) GetSessionUser(_ context.Context, token string, now time.Time) (*models.User, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	s, ok := m.Sessions[token]
	if !ok || !s.ExpiresAt.After(now) {
		return nil, models.ErrSessionNotFound
	}
	u := m.Users[s.UserID]
	return &u, nil
}

func (m *MockSessionStore) DeleteSession(_ context.Context, token string) error {
	delete(m.Sessions, token)
	return nil
}

// --- Tests ---

func protected(s *Sessions) http.Handler {
	return s.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := UserFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		_, _ = w.Write([]byte(u.Email))
	}))
}

func TestSessionRoundTrip(t *testing.T) {
	store := newMockStore()
	s := NewSessions(store, "secret")

	rec := httptest.NewRecorder()
	require.NoError(t, s.Start(context.Background(), rec, 7))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	require.Len(t, store.Sessions, 1)
	for token := range store.Sessions {
		assert.NotContains(t, cookies[0].Value, token)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	protected(s).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "erin@example.com", rec.Body.String())

	rec = httptest.NewRecorder()
	require.NoError(t, s.End(rec, req))
	assert.Empty(t, store.Sessions)

	rec = httptest.NewRecorder()
	protected(s).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireUserRejects(t *testing.T) {
	store := newMockStore()
	s := NewSessions(store, "secret")
	rec := httptest.NewRecorder()
	require.NoError(t, s.Start(context.Background(), rec, 7))
	good := rec.Result().Cookies()[0]

	other := NewSessions(store, "another-secret")
	rec = httptest.NewRecorder()
	require.NoError(t, other.Start(context.Background(), rec, 7))
	foreign := rec.Result().Cookies()[0]

	testCases := []struct {
		name       string
		cookie     *http.Cookie
		setup      func()
		wantStatus int
	}{
		{name: "no cookie", wantStatus: http.StatusUnauthorized},
		{name: "unsigned token", cookie: &http.Cookie{Name: CookieName, Value: "abc"}, wantStatus: http.StatusUnauthorized},
		{name: "forged signature", cookie: &http.Cookie{Name: CookieName, Value: good.Value + "x"}, wantStatus: http.StatusUnauthorized},
		{name: "signed with another secret", cookie: foreign, wantStatus: http.StatusUnauthorized},
		{
			name:   "expired session",
			cookie: good,
			setup: func() {
				s.now = func() time.Time { return time.Now().Add(2 * DefaultSessionTTL) }
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:   "store failure",
			cookie: good,
			setup: func() {
				s.now = time.Now
				store.Err = errors.New("db down")
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.setup != nil {
				tc.setup()
			}
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.cookie != nil {
				req.AddCookie(tc.cookie)
			}
			rec := httptest.NewRecorder()
			protected(s).ServeHTTP(rec, req)
			assert.Equal(t, tc.wantStatus, rec.Code)
		})
	}
}

func TestStartFailsWhenStoreFails(t *testing.T) {
	store := newMockStore()
	store.Err = errors.New("insert failed")
	s := NewSessions(store, "secret")
	assert.Error(t, s.Start(context.Background(), httptest.NewRecorder(), 7))
}
