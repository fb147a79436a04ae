package logging

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// reportParams are the query parameters worth seeing in a request log
var reportParams = []string{"page", "q", "sort", "depth"}

// RequestLogger is a mux middleware for the report server. It tags each
// request with an ID and logs the page, topic and query it asked about.
// It must run inside the router so route variables are set.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := WithRequestID(r.Context(), requestID)
		r = r.WithContext(ctx)
		w.Header().Set("X-Request-ID", requestID)

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(wrapped, r)

		fields := append(requestFields(r),
			"status", wrapped.statusCode,
			"bytes", wrapped.bytes,
			"durationMs", time.Since(start).Milliseconds(),
		)

		switch {
		case wrapped.statusCode == http.StatusServiceUnavailable:
			WarnContext(ctx, "no report loaded", fields...)
		case wrapped.statusCode >= 500:
			ErrorContext(ctx, "request failed", fields...)
		case wrapped.statusCode >= 400:
			WarnContext(ctx, "request rejected", fields...)
		case mux.Vars(r)["topic"] != "":
			InfoContext(ctx, "subscription closed", fields...)
		default:
			InfoContext(ctx, "request completed", fields...)
		}
	})
}

func requestFields(r *http.Request) []any {
	fields := []any{"method", r.Method, "path", r.URL.Path}

	vars := mux.Vars(r)
	if name := vars["name"]; name != "" {
		fields = append(fields, "page", name)
	}
	if topic := vars["topic"]; topic != "" {
		fields = append(fields, "topic", topic)
	}

	query := r.URL.Query()
	for _, key := range reportParams {
		if values, ok := query[key]; ok {
			fields = append(fields, key, strings.Join(values, ","))
		}
	}
	return fields
}

// responseWriter records the status code and body size
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	bytes      int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

// Flush lets streaming handlers flush through the wrapper
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
