package relay

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/zerolog/log"

	"github.com/fpang/instagram-relay/internal/metrics"
)

// HeaderRequestID carries the request ID on requests and responses.
const HeaderRequestID = "X-Request-ID"

// maxRequestIDLen bounds caller-supplied request IDs.
const maxRequestIDLen = 128

type ctxKey int

const requestIDKey ctxKey = iota

// RequestID returns the request ID stored in ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// withRequestID propagates an incoming X-Request-ID or assigns a new UUID.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(sr, r)

		evt := log.Info()
		if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			evt = log.Debug()
		}
		evt.
			Str("requestId", RequestID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sr.statusCode).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// withCORS allows any origin.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+HeaderRequestID)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withMetrics records per-request Prometheus metrics and, in Lambda, EMF
// metrics: RequestLatencyMs, RequestCount (Endpoint dimension).
func (s *Server) withMetrics(next http.Handler) http.Handler {
	if s.metrics == nil && !s.emf {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		if s.metrics != nil {
			done := s.metrics.InFlight()
			defer done()
		}
		sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(sr, r)

		elapsed := time.Since(start)
		endpoint := normalizeEndpoint(r.URL.Path)

		if s.metrics != nil {
			s.metrics.ObserveRequest(r.Method, endpoint, sr.statusCode, elapsed)
		}
		if s.emf {
			metrics.New().
				Dimension("Endpoint", endpoint).
				Metric("RequestLatencyMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds).
				Count("RequestCount").
				Property("method", r.Method).
				Property("statusCode", sr.statusCode).
				Property("requestId", RequestID(r.Context())).
				Flush()
		}
	})
}

// withGzip compresses responses the client accepts gzip for. Bodies below
// gzhttp's minimum size (the webhook acknowledgements) pass through as-is.
func withGzip(next http.Handler) http.Handler {
	return gzhttp.GzipHandler(next)
}

// knownEndpoints are reported as-is; everything else collapses to "other"
// to keep metric label cardinality bounded.
var knownEndpoints = map[string]bool{
	"/":                        true,
	"/health":                  true,
	"/metrics":                 true,
	"/instagram":               true,
	"/webhooks/instagram":      true,
	"/auth/instagram/callback": true,
	"/ids":                     true,
	"/insights/user":           true,
	"/insights/media":          true,
	"/list-media":              true,
}

// normalizeEndpoint maps request paths to low-cardinality endpoint names.
// The /insights-prefixed duplicates report under their unprefixed route.
func normalizeEndpoint(path string) string {
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	if knownEndpoints[path] {
		return path
	}
	if trimmed := strings.TrimPrefix(path, "/insights"); trimmed != path && knownEndpoints[trimmed] && trimmed != "/" {
		return trimmed
	}
	return "other"
}
