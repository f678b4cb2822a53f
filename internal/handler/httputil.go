package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/matthewbaird/casedesk/internal/apiclient"
	"github.com/matthewbaird/casedesk/internal/form"
	"github.com/matthewbaird/casedesk/internal/i18n"
)

// writeJSON marshals v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("writeJSON encode error", zap.Error(err))
	}
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
		"code":  code,
	})
}

// writeHTML writes an HTML fragment.
func writeHTML(w http.ResponseWriter, status int, html template.HTML) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(html))
}

// decodeJSON decodes the request body into v.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// isFormPost reports whether the body is a browser form submission.
func isFormPost(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.HasPrefix(ct, "application/x-www-form-urlencoded") ||
		strings.HasPrefix(ct, "multipart/form-data")
}

// Pagination holds parsed pagination parameters.
type Pagination struct {
	Page     int
	PageSize int
}

// parsePagination extracts page and page_size from query params.
func parsePagination(r *http.Request) Pagination {
	p := Pagination{Page: 1, PageSize: 20}
	if v := r.URL.Query().Get("page_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.PageSize = n
		}
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.Page = n
		}
	}
	return p
}

func (p Pagination) params(query string) apiclient.ListParams {
	return apiclient.ListParams{Page: p.Page, PageSize: p.PageSize, Query: query}
}

// apiStatus maps an API failure to the status we answer with: 404 stays
// 404, anything else is a bad gateway.
func apiStatus(err error) (int, string) {
	if apiclient.IsNotFound(err) {
		return http.StatusNotFound, "NOT_FOUND"
	}
	return http.StatusBadGateway, "UPSTREAM_ERROR"
}

// writeAPIError converts any API failure into the generic localized
// message. The detail only goes to the log.
func writeAPIError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	status, code := apiStatus(err)
	logger.Warn("api call failed",
		zap.String("path", r.URL.Path),
		zap.String("request_id", RequestIDFrom(r.Context())),
		zap.Error(err))
	msg := i18n.T(LangFrom(r.Context()), "request_failed")
	if status == http.StatusNotFound {
		msg = i18n.T(LangFrom(r.Context()), "not_found")
	}
	writeError(w, status, code, msg)
}

// writeValidation answers 422 with localized per-field messages.
func writeValidation(w http.ResponseWriter, r *http.Request, verr *form.ValidationError) {
	lang := LangFrom(r.Context())
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"error":  i18n.T(lang, "validation_failed"),
		"code":   "VALIDATION_ERROR",
		"fields": i18n.Errors(lang, verr.Fields),
	})
}

// writeBadRequest answers 400 with a localized message.
func writeBadRequest(w http.ResponseWriter, r *http.Request, code, msgCode string) {
	writeError(w, http.StatusBadRequest, code, i18n.T(LangFrom(r.Context()), msgCode))
}

// asValidation extracts a *form.ValidationError from err.
func asValidation(err error) (*form.ValidationError, bool) {
	var verr *form.ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}

// rawString turns a decoded JSON value into what a user would have typed.
func rawString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case json.Number:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
