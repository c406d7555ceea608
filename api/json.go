package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/kilianp07/civicdispatch/core/dispatch"
	"github.com/kilianp07/civicdispatch/core/model"
)

// maxBodyBytes leaves room for five base64 encoded photos.
const maxBodyBytes = 32 << 20

var (
	errUnauthorized = errors.New("unauthorized")
	errPanic        = errors.New("internal error")
	errNotFound     = errors.New("not found")
	errBadRequest   = errors.New("bad request")
)

type errorWire struct {
	StatusCode int    `json:"status_code"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	reqID := middleware.GetReqID(r.Context())
	if reqID != "" {
		w.Header().Set("X-Request-ID", reqID)
	}
	body := errorWire{
		StatusCode: status,
		Status:     http.StatusText(status),
		RequestID:  reqID,
	}
	if err != nil {
		body.Error = err.Error()
	}
	writeJSON(w, status, body)
}

// statusFor maps service errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, dispatch.ErrInvalidRequest),
		errors.Is(err, model.ErrInvalidPoint):
		return http.StatusBadRequest
	case errors.Is(err, errNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// bindJSON decodes a single JSON document from the body. Unknown fields and
// trailing data are rejected.
func bindJSON[T any](w http.ResponseWriter, r *http.Request) (T, error) {
	var v T
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		if errors.Is(err, io.EOF) {
			return v, fmt.Errorf("%w: empty body", errBadRequest)
		}
		return v, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if dec.More() {
		return v, fmt.Errorf("%w: trailing data after JSON body", errBadRequest)
	}
	return v, nil
}
