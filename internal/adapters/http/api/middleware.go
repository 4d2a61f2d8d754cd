package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/akashca-pro/codex-problem-service-sub000/pkg/metrics"
)

// MetricsMiddleware records request count, latency and, for failed requests,
// the error code the handler answered with.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		status := strconv.Itoa(rec.status)
		metrics.RecordHTTPRequest(endpoint, r.Method, status)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, status, float64(time.Since(start).Microseconds())/1000)
		if rec.status >= http.StatusBadRequest {
			code := rec.code
			if code == "" {
				code = "unclassified"
			}
			metrics.RecordErrorByEndpoint(endpoint, r.Method, code)
		}
	}
}

// statusRecorder captures the response status and the error code set by
// writeError.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	code        string
	wroteHeader bool
}

func (rec *statusRecorder) WriteHeader(status int) {
	if !rec.wroteHeader {
		rec.status = status
		rec.wroteHeader = true
	}
	rec.ResponseWriter.WriteHeader(status)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	rec.wroteHeader = true
	return rec.ResponseWriter.Write(b)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rec *statusRecorder) Unwrap() http.ResponseWriter { return rec.ResponseWriter }

// errorCoder is implemented by writers that want the error code of a failed
// response.
type errorCoder interface {
	setErrorCode(code string)
}

func (rec *statusRecorder) setErrorCode(code string) { rec.code = code }
