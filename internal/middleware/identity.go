package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

const (
	ClientIDHeader = "X-Client-ID"

	clientIDKey contextKey = "client_id"
	maxClientID            = 128
)

// ClientIdentity requires the X-Client-ID header and stores it on the context.
func ClientIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(ClientIDHeader))
		if id == "" || len(id) > maxClientID {
			writeError(w, http.StatusUnauthorized, "missing_identity", "X-Client-ID header is required", nil)
			return
		}
		ctx := context.WithValue(r.Context(), clientIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func ClientIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(clientIDKey).(string); ok {
		return v
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, code, message string, extra map[string]any) {
	body := map[string]any{"code": code, "message": message}
	for k, v := range extra {
		body[k] = v
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": body})
}
