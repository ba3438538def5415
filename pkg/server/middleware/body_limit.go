package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// tooLargeResponse mirrors the server's JSON error body.
type tooLargeResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Code      int    `json:"code"`
	Limit     int64  `json:"limit_bytes"`
	RequestID string `json:"request_id,omitempty"`
}

// BodySizeLimit caps ingest bodies at maxBytes.
//
// A request whose Content-Length already exceeds the cap is refused with 413
// before any of it is staged. Chunked bodies are wrapped in
// http.MaxBytesReader; the handler sees *http.MaxBytesError from Read once
// the cap is crossed and answers 413 itself, keeping the batches it staged
// before that point.
func BodySizeLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, r)
				return
			}
			if r.ContentLength > maxBytes {
				rejectTooLarge(w, r, maxBytes)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

func rejectTooLarge(w http.ResponseWriter, r *http.Request, limit int64) {
	// The unread body is not drained; ask the client not to reuse the connection.
	w.Header().Set("Connection", "close")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusRequestEntityTooLarge)
	_ = json.NewEncoder(w).Encode(tooLargeResponse{
		Error:     http.StatusText(http.StatusRequestEntityTooLarge),
		Message:   fmt.Sprintf("request body of %d bytes exceeds %d bytes", r.ContentLength, limit),
		Code:      http.StatusRequestEntityTooLarge,
		Limit:     limit,
		RequestID: GetRequestID(r),
	})
}
