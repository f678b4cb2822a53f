package handler

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/matthewbaird/casedesk/internal/apiclient"
	"github.com/matthewbaird/casedesk/internal/i18n"
)

// Notifier registers push tokens per session.
type Notifier interface {
	Register(ctx context.Context, owner, token string) (bool, error)
	Logout(ctx context.Context, owner string)
}

// CookieSettings configures the auth cookie.
type CookieSettings struct {
	Name   string
	Secure bool
	MaxAge time.Duration
}

// AuthHandler handles login, logout and push token registration.
type AuthHandler struct {
	api    AuthAPI
	notify Notifier
	cookie CookieSettings
	logger *zap.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(api AuthAPI, notify Notifier, cookie CookieSettings, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{api: api, notify: notify, cookie: cookie, logger: logger}
}

// Login exchanges credentials for an API token and stores it in the auth
// cookie. The token is also returned for API clients.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var cred apiclient.Credentials
	if isFormPost(r) {
		if err := r.ParseForm(); err != nil {
			writeBadRequest(w, r, "INVALID_BODY", "bad_request")
			return
		}
		cred.Email, cred.Password = r.PostForm.Get("email"), r.PostForm.Get("password")
	} else if err := decodeJSON(r, &cred); err != nil {
		writeBadRequest(w, r, "INVALID_BODY", "bad_request")
		return
	}
	if cred.Email == "" || cred.Password == "" {
		writeBadRequest(w, r, "INVALID_CREDENTIALS", "bad_request")
		return
	}

	sess, err := h.api.Login(r.Context(), cred)
	if err != nil {
		if apiclient.IsUnauthorized(err) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", i18n.T(LangFrom(r.Context()), "unauthorized"))
			return
		}
		writeAPIError(w, r, h.logger, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    sess.Token,
		Path:     "/",
		MaxAge:   int(h.cookie.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	h.logger.Info("user logged in", zap.String("user_id", sess.User.ID))
	writeJSON(w, http.StatusOK, sess)
}

// Logout drops the session's push token and clears the auth cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := apiclient.TokenFrom(r.Context()); token != "" {
		h.notify.Logout(context.WithoutCancel(r.Context()), token)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// RegisterToken registers a device push token unless this session already
// registered the same one.
func (h *AuthHandler) RegisterToken(w http.ResponseWriter, r *http.Request) {
	owner := apiclient.TokenFrom(r.Context())
	if owner == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", i18n.T(LangFrom(r.Context()), "unauthorized"))
		return
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(r, &body); err != nil || body.Token == "" {
		writeBadRequest(w, r, "INVALID_BODY", "bad_request")
		return
	}
	called, err := h.notify.Register(context.WithoutCancel(r.Context()), owner, body.Token)
	if err != nil {
		writeAPIError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"registered": called})
}
