package app_test

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poshstock/poshstock/app"
	"github.com/poshstock/poshstock/config"
	"github.com/poshstock/poshstock/testutil"
)

type client struct {
	t    *testing.T
	base string
	http *http.Client
}

func newServer(t *testing.T) *client {
	cfg, err := config.Load(viper.New())
	require.NoError(t, err)
	cfg.Uploads.Dir = t.TempDir()
	cfg.SecretKey = "test-secret"

	db := testutil.SetupTestDB(t)
	handler, err := app.NewRouter(cfg, db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &client{
		t:    t,
		base: srv.URL,
		http: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (c *client) do(method, path string, form url.Values) (*http.Response, map[string]any) {
	c.t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequest(method, c.base+path, body)
	require.NoError(c.t, err)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	var out map[string]any
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		raw, err := io.ReadAll(resp.Body)
		require.NoError(c.t, err)
		if len(raw) > 0 && raw[0] == '{' {
			require.NoError(c.t, json.Unmarshal(raw, &out))
		}
	}
	return resp, out
}

func TestHealthzIsPublic(t *testing.T) {
	c := newServer(t)
	resp, body := c.do("GET", "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ok"])
}

func TestProtectedRoutesNeedLogin(t *testing.T) {
	c := newServer(t)
	for _, path := range []string{"/items", "/categories", "/api/me", "/labels/1.png", "/api/items/lookup?barcode=1"} {
		resp, _ := c.do("GET", path, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}
}

func TestPricingIsPublic(t *testing.T) {
	c := newServer(t)
	resp, body := c.do("GET", "/api/pricing/breakeven?cost=12.50", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "15.63", body["break_even"])
}

func TestInventoryFlow(t *testing.T) {
	c := newServer(t)

	resp, _ := c.do("POST", "/register", url.Values{"email": {"Seller@Example.com"}, "password": {"closet-cash"}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = c.do("POST", "/register", url.Values{"email": {"seller@example.com"}, "password": {"again"}})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = c.do("POST", "/login", url.Values{"email": {"seller@example.com"}, "password": {"wrong"}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = c.do("POST", "/login", url.Values{"email": {"seller@example.com"}, "password": {"closet-cash"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, me := c.do("GET", "/api/me", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "seller@example.com", me["email"])

	resp, cat := c.do("POST", "/categories", url.Values{"name": {"Jackets"}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	catID := int(cat["id"].(float64))

	resp, cat = c.do("POST", "/categories", url.Values{"name": {"Jackets"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, cat["created"])

	// Scanner flow: unknown barcode, then create it in the category.
	resp, found := c.do("GET", "/api/items/lookup?barcode=4006381333931", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, found["found"])

	resp, item := c.do("POST", fmt.Sprintf("/categories/%d/items", catID), url.Values{
		"barcode":        {"4006381333931"},
		"purchase_price": {"12.50"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	itemID := int(item["id"].(float64))
	assert.Equal(t, "Untitled", item["title"])
	assert.Equal(t, "15.63", item["list_price"])

	resp, found = c.do("GET", "/api/items/lookup?barcode=4006381333931", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, found["found"])
	assert.Equal(t, float64(itemID), found["id"])

	resp, dup := c.do("POST", "/items", url.Values{"title": {"Copy"}, "barcode": {"4006381333931"}})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, float64(itemID), dup["id"])

	resp, _ = c.do("GET", "/items/by_barcode/4006381333931", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, fmt.Sprintf("/items/%d", itemID), resp.Header.Get("Location"))

	resp, item = c.do("POST", fmt.Sprintf("/items/%d/edit", itemID), url.Values{
		"title":      {"Wool coat"},
		"sold_price": {"40"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Wool coat", item["title"])
	assert.Equal(t, "32.00", item["payout"])
	assert.Equal(t, "19.50", item["profit"])

	resp, _ = c.do("GET", fmt.Sprintf("/labels/%d.png?w=40mm&h=30mm", itemID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, "ean13", resp.Header.Get("X-Label-Symbology"))
	assert.Equal(t, "472x354", resp.Header.Get("X-Label-Target"))

	resp, _ = c.do("GET", fmt.Sprintf("/labels/print?ids=%d&copies=2", itemID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html"))

	// Deleting the category keeps its items.
	resp, _ = c.do("POST", fmt.Sprintf("/categories/%d/delete", catID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, item = c.do("GET", fmt.Sprintf("/items/%d", itemID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, item["category"])

	resp, deleted := c.do("POST", "/items/bulk_delete", url.Values{"ids": {fmt.Sprintf("%d,999", itemID)}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), deleted["deleted"])

	resp, _ = c.do("POST", "/logout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = c.do("GET", "/api/me", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestUsersAreIsolated(t *testing.T) {
	alice := newServer(t)
	resp, _ := alice.do("POST", "/register", url.Values{"email": {"a@example.com"}, "password": {"pw"}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = alice.do("POST", "/login", url.Values{"email": {"a@example.com"}, "password": {"pw"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, item := alice.do("POST", "/items", url.Values{"title": {"Scarf"}, "barcode": {"SKU-9"}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	itemID := int(item["id"].(float64))

	// A second account on the same server.
	bob := &client{t: t, base: alice.base, http: &http.Client{}}
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	bob.http.Jar = jar
	resp, _ = bob.do("POST", "/register", url.Values{"email": {"b@example.com"}, "password": {"pw"}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = bob.do("POST", "/login", url.Values{"email": {"b@example.com"}, "password": {"pw"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = bob.do("GET", fmt.Sprintf("/items/%d", itemID), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, found := bob.do("GET", "/api/items/lookup?barcode=SKU9", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, found["found"])

	resp, _ = bob.do("POST", "/items", url.Values{"title": {"Also scarf"}, "barcode": {"SKU9"}})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}
