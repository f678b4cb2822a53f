package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/matthewbaird/casedesk/internal/apiclient"
)

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	w := serve(h, req)
	assert.Equal(t, "abc", seen)
	assert.Equal(t, "abc", w.Header().Get("X-Request-ID"))

	w = serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, seen, 36)
	assert.Equal(t, seen, w.Header().Get("X-Request-ID"))
}

func TestLoggingAndRecovery(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	h := RequestID(Logging(logger)(Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))))
	w := serve(h, httptest.NewRequest(http.MethodGet, "/v1/cases", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", decodeBody(t, w)["code"])

	assert.Equal(t, 1, logs.FilterMessage("panic serving request").Len())
	reqLogs := logs.FilterMessage("request").All()
	require.Len(t, reqLogs, 1)
	assert.EqualValues(t, http.StatusInternalServerError, reqLogs[0].ContextMap()["status"])
	assert.Equal(t, "/v1/cases", reqLogs[0].ContextMap()["path"])
}

func TestSessionMiddleware(t *testing.T) {
	var token string
	h := Session("sid")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token = apiclient.TokenFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "from-cookie"})
	req.Header.Set("Authorization", "Bearer from-header")
	serve(h, req)
	assert.Equal(t, "from-cookie", token)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer from-header")
	serve(h, req)
	assert.Equal(t, "from-header", token)

	serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Empty(t, token)
}

func TestLocaleMiddleware(t *testing.T) {
	var lang string
	h := Locale("en")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lang = LangFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/?lang=fr", nil)
	serve(h, req)
	assert.Equal(t, "fr", lang)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "lang", Value: "fr"})
	serve(h, req)
	assert.Equal(t, "fr", lang)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "fr-CA,fr;q=0.9")
	serve(h, req)
	assert.Equal(t, "fr", lang)

	req = httptest.NewRequest(http.MethodGet, "/?lang=de", nil)
	serve(h, req)
	assert.Equal(t, "en", lang)
}
