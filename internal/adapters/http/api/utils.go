package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError responds with the status and code derived from err.
func writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	if ec, ok := w.(errorCoder); ok {
		ec.setErrorCode(code)
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// decode reads a JSON body into v and validates it.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	if err := validate.Struct(v); err != nil {
		return err
	}
	return nil
}

// parseLimit reads ?limit=N, which must be in [1, maxLimit].
func parseLimit(r *http.Request, maxLimit int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return min(defaultLimit, maxLimit), nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("limit must be a positive integer, got %q", raw)
	}
	if n > maxLimit {
		return 0, fmt.Errorf("limit %d exceeds maximum %d", n, maxLimit)
	}
	return n, nil
}
