package middleware

import (
	"net/http"
)

// Default body size limits.
const (
	// MaxWebhookBodySize is the maximum size for webhook payloads (10MB).
	MaxWebhookBodySize = 10 << 20

	// MaxJSONBodySize is the maximum size for JSON API requests (1MB).
	MaxJSONBodySize = 1 << 20
)

// BodySizeLimiter limits the size of request bodies.
func BodySizeLimiter(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil || r.ContentLength == 0 {
				next.ServeHTTP(w, r)
				return
			}

			if r.ContentLength > maxBytes {
				http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
				return
			}

			// MaxBytesReader also covers chunked encoding
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

			next.ServeHTTP(w, r)
		})
	}
}

// BodySizeLimiterJSON returns a middleware limiting JSON API request bodies.
func BodySizeLimiterJSON() func(http.Handler) http.Handler {
	return BodySizeLimiter(MaxJSONBodySize)
}

// BodySizeLimiterWebhook returns a middleware limiting webhook payload bodies.
func BodySizeLimiterWebhook() func(http.Handler) http.Handler {
	return BodySizeLimiter(MaxWebhookBodySize)
}
