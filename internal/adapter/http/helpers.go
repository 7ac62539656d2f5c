package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/GustheTrader/Build-flow/internal/domain"
	"github.com/GustheTrader/Build-flow/internal/middleware"
)

// ---------------------------------------------------------------------------
// Request helpers
// ---------------------------------------------------------------------------

// readJSON decodes the request body into T, writing a 400 or 413 on failure.
func readJSON[T any](w http.ResponseWriter, r *http.Request, bodyLimit int64) (T, bool) {
	var v T
	return v, decodeBody(w, r, bodyLimit, &v, false)
}

// readOptionalJSON is readJSON for bodies whose fields are all optional: an
// empty body decodes to the zero value.
func readOptionalJSON[T any](w http.ResponseWriter, r *http.Request, bodyLimit int64) (T, bool) {
	var v T
	return v, decodeBody(w, r, bodyLimit, &v, true)
}

func decodeBody(w http.ResponseWriter, r *http.Request, bodyLimit int64, v any, allowEmpty bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || (allowEmpty && errors.Is(err, io.EOF)) {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large", domain.CodeValidation)
	} else {
		writeError(w, http.StatusBadRequest, "invalid request body", domain.CodeValidation)
	}
	return false
}

// urlParam is a short alias for chi.URLParam.
func urlParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

// requireField writes a 400 error and returns false when value is empty.
func requireField(w http.ResponseWriter, value, fieldName string) bool {
	if value == "" {
		writeError(w, http.StatusBadRequest, fieldName+" is required", domain.CodeValidation)
		return false
	}
	return true
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string) (int, bool) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, true
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}

// subject returns the authenticated caller's subject, or "" when the
// request carries no principal.
func subject(r *http.Request) string {
	if p := middleware.PrincipalFromContext(r.Context()); p != nil {
		return p.Subject
	}
	return ""
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

// statusForCode maps an error taxonomy code to its HTTP status.
var statusForCode = map[string]int{
	domain.CodeNotFound:          http.StatusNotFound,
	domain.CodeConflict:          http.StatusConflict,
	domain.CodeValidation:        http.StatusBadRequest,
	domain.CodeUnknownAgentKind:  http.StatusBadRequest,
	domain.CodeInvalidTransition: http.StatusConflict,
	domain.CodeUnauthorized:      http.StatusUnauthorized,
	domain.CodeStorage:           http.StatusServiceUnavailable,
}

// writeDomainError renders err with its taxonomy code. Client errors carry
// the error text minus the sentinel suffix; storage and unclassified errors
// are logged and answered generically.
func writeDomainError(w http.ResponseWriter, err error, fallbackMsg string) {
	code := domain.Code(err)
	status, ok := statusForCode[code]
	if !ok {
		writeInternalError(w, err)
		return
	}
	switch code {
	case domain.CodeStorage:
		slog.Error("storage failure", "error", err)
		writeError(w, status, "storage unavailable", code)
	case domain.CodeNotFound:
		writeError(w, status, fallbackMsg, code)
	default:
		writeError(w, status, clientMessage(err), code)
	}
}

// clientMessage strips the trailing ": <sentinel>" added by %w wrapping.
func clientMessage(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i > 0 {
		return msg[:i]
	}
	return msg
}

// writeInternalError logs the actual error server-side and returns a generic message to the client.
func writeInternalError(w http.ResponseWriter, err error) {
	slog.Error("request failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error", domain.CodeInternal)
}
