package handler

import (
	"context"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matthewbaird/casedesk/internal/apiclient"
	"github.com/matthewbaird/casedesk/internal/i18n"
)

type ctxKey string

const (
	ctxRequestID ctxKey = "request_id"
	ctxLang      ctxKey = "lang"
)

// RequestID reuses X-Request-ID when the caller sent one and otherwise
// assigns a fresh uuid. The id is echoed in the response header.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), ctxRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFrom returns the request id stored by RequestID.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxRequestID).(string)
	return id
}

// Logging logs one line per request.
func Logging(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", RequestIDFrom(r.Context())))
		})
	}
}

// Recovery turns panics into 500 responses.
func Recovery(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("panic serving request",
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path),
					zap.String("request_id", RequestIDFrom(r.Context())),
					zap.ByteString("stack", debug.Stack()))
				writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", i18n.T(LangFrom(r.Context()), "request_failed"))
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Session moves the caller's API token into the request context. The token
// comes from the auth cookie or, for API clients, a bearer header.
func Session(cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ""
			if c, err := r.Cookie(cookieName); err == nil {
				token = c.Value
			}
			if h := r.Header.Get("Authorization"); token == "" && strings.HasPrefix(h, "Bearer ") {
				token = strings.TrimPrefix(h, "Bearer ")
			}
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(apiclient.WithToken(r.Context(), token)))
		})
	}
}

// Locale picks the message language: ?lang=, then the lang cookie, then
// Accept-Language, then fallback.
func Locale(fallback string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lang := ""
			if q := r.URL.Query().Get("lang"); i18n.Supported(q) {
				lang = q
			} else if c, err := r.Cookie("lang"); err == nil && i18n.Supported(c.Value) {
				lang = c.Value
			} else {
				lang = i18n.Negotiate(r.Header.Get("Accept-Language"), fallback)
			}
			ctx := context.WithValue(r.Context(), ctxLang, lang)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LangFrom returns the negotiated language, or the default.
func LangFrom(ctx context.Context) string {
	if v, ok := ctx.Value(ctxLang).(string); ok && v != "" {
		return v
	}
	return i18n.Default
}

// actorFrom returns the acting user as reported by the X-Actor header.
func actorFrom(r *http.Request) string {
	return r.Header.Get("X-Actor")
}
