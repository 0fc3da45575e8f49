package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/beach-seat-reservation/internal/apperr"
	"github.com/iliyamo/beach-seat-reservation/internal/config"
	"github.com/iliyamo/beach-seat-reservation/internal/lib/logger/slogdiscard"
	"github.com/iliyamo/beach-seat-reservation/internal/model"
	"github.com/iliyamo/beach-seat-reservation/internal/session"
	"github.com/iliyamo/beach-seat-reservation/internal/utils"
)

const secret = "test-secret"

func serve(t *testing.T, store session.Store, cookie string, mws ...echo.MiddlewareFunc) (echo.Context, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: "sid", Value: cookie})
	}
	c := e.NewContext(req, httptest.NewRecorder())

	h := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	chain := append([]echo.MiddlewareFunc{LoadSession(store, secret, "sid", slogdiscard.NewDiscardLogger())}, mws...)
	for i := len(chain) - 1; i >= 0; i-- {
		h = chain[i](h)
	}
	return c, h(c)
}

func login(t *testing.T, store session.Store, role string) string {
	t.Helper()
	require.NoError(t, store.Save(context.Background(), session.Session{
		ID:   "s1",
		User: model.Customer{ID: "u1", Role: role},
	}, time.Hour))
	tok, err := utils.NewSessionToken(secret, "s1", time.Hour)
	require.NoError(t, err)
	return tok.Token
}

func TestRequireSession(t *testing.T) {
	t.Parallel()

	store := session.NewMemoryStore()
	_, err := serve(t, store, "", RequireSession())
	assert.ErrorIs(t, err, apperr.ErrNotLoggedIn)

	_, err = serve(t, store, "not-a-jwt", RequireSession())
	assert.ErrorIs(t, err, apperr.ErrNotLoggedIn)

	// a well signed cookie for a session that no longer exists
	tok, err := utils.NewSessionToken(secret, "gone", time.Hour)
	require.NoError(t, err)
	_, err = serve(t, store, tok.Token, RequireSession())
	assert.ErrorIs(t, err, apperr.ErrNotLoggedIn)

	c, err := serve(t, store, login(t, store, model.RoleCustomer), RequireSession())
	require.NoError(t, err)
	s, ok := SessionFrom(c)
	require.True(t, ok)
	assert.Equal(t, "u1", s.User.ID)
	assert.Equal(t, "u1", currentUserID(c))
}

func TestRequireRole(t *testing.T) {
	t.Parallel()

	store := session.NewMemoryStore()
	_, err := serve(t, store, login(t, store, model.RoleCustomer), RequireSession(), RequireRole(model.RoleAdmin))
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	store = session.NewMemoryStore()
	_, err = serve(t, store, login(t, store, model.RoleAdmin), RequireSession(), RequireRole(model.RoleAdmin))
	assert.NoError(t, err)
}

func TestRateKeyStrategies(t *testing.T) {
	t.Parallel()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/book", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/book")

	tests := []struct {
		strategy string
		want     string
	}{
		{"ip", "rl:ip:10.0.0.1"},
		{"user", "rl:user:anon"},
		{"route", "rl:route:POST /book"},
		{"", "rl:ip:10.0.0.1:user:anon:route:POST /book"},
		{"ip_user_route", "rl:ip:10.0.0.1:user:anon:route:POST /book"},
		{"user_route", "rl:user:anon:route:POST /book"},
	}
	for _, tt := range tests {
		got := buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: tt.strategy}, c)
		assert.Equal(t, tt.want, got, tt.strategy)
	}
}

func TestCachePayloadRoundTrip(t *testing.T) {
	t.Parallel()

	hdr := http.Header{echo.HeaderContentType: []string{echo.MIMEApplicationJSON}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"ok":true}`))
	require.NoError(t, err)

	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, echo.MIMEApplicationJSON, got.Get(echo.HeaderContentType))
	assert.JSONEq(t, `{"ok":true}`, string(body))

	_, _, _, ok = decodePayload(bs[:5])
	assert.False(t, ok)
}

func TestDisabledMiddlewaresPassThrough(t *testing.T) {
	t.Parallel()

	log := slogdiscard.NewDiscardLogger()
	boom := errors.New("boom")
	next := func(echo.Context) error { return boom }

	for _, mw := range []echo.MiddlewareFunc{
		NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil, log),
		NewRedisCache(config.CacheConfig{Enabled: true}, nil, log),
		PurgeCache(config.CacheConfig{Enabled: true}, nil, log),
	} {
		assert.ErrorIs(t, mw(next)(nil), boom)
	}
}
