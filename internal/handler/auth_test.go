package handler

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/casedesk/internal/notify"
)

type fakeRegistrar struct {
	mu           sync.Mutex
	registered   []string
	unregistered []string
}

func (f *fakeRegistrar) RegisterPushToken(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered = append(f.registered, token)
	return nil
}

func (f *fakeRegistrar) UnregisterPushToken(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unregistered = append(f.unregistered, token)
	return nil
}

func setupAuth(t *testing.T) (*fakeRegistrar, http.Handler) {
	t.Helper()
	reg := &fakeRegistrar{}
	svc := notify.NewService(notify.NewTokenCache(), reg, nil)
	h := NewAuthHandler(newFakeAPI(), svc, CookieSettings{Name: "sid", Secure: true, MaxAge: time.Hour}, nil)
	r := chi.NewRouter()
	r.Use(Locale("en"), Session("sid"))
	r.Post("/v1/login", h.Login)
	r.Post("/v1/logout", h.Logout)
	r.Post("/v1/notifications/token", h.RegisterToken)
	return reg, r
}

func TestLogin(t *testing.T) {
	_, h := setupAuth(t)

	w := do(t, h, http.MethodPost, "/v1/login", jsonCT, `{"email":"a@b.c","password":"wrong"}`)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, w.Result().Cookies())

	w = do(t, h, http.MethodPost, "/v1/login", formCT, "email=a%40b.c&password=secret")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, "sid", c.Name)
	assert.Equal(t, "tok-1", c.Value)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, 3600, c.MaxAge)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)

	w = do(t, h, http.MethodPost, "/v1/login", jsonCT, `{"email":"a@b.c"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPushTokenRegistration(t *testing.T) {
	reg, h := setupAuth(t)

	w := do(t, h, http.MethodPost, "/v1/notifications/token", jsonCT, `{"token":"push-1"}`)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	withAuth := func(method, path, body string) int {
		req := newJSONRequest(method, path, body)
		req.Header.Set("Authorization", "Bearer tok-1")
		w := serve(h, req)
		return w.Code
	}

	require.Equal(t, http.StatusOK, withAuth(http.MethodPost, "/v1/notifications/token", `{"token":"push-1"}`))
	require.Equal(t, http.StatusOK, withAuth(http.MethodPost, "/v1/notifications/token", `{"token":"push-1"}`))
	assert.Equal(t, []string{"push-1"}, reg.registered, "same token is registered once")

	require.Equal(t, http.StatusNoContent, withAuth(http.MethodPost, "/v1/logout", ""))
	assert.Equal(t, []string{"push-1"}, reg.unregistered)

	// After logout the cache no longer suppresses registration.
	require.Equal(t, http.StatusOK, withAuth(http.MethodPost, "/v1/notifications/token", `{"token":"push-1"}`))
	assert.Len(t, reg.registered, 2)
}
