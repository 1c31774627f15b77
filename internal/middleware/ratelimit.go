package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"storefront/internal/ratelimit"
)

// Allower is the rate limiter as seen by the middleware.
type Allower interface {
	Allow(ctx context.Context, clientID string) (ratelimit.Decision, error)
}

// RateLimit gates requests per client identity. It must run after
// ClientIdentity; without an identity it falls back to the client IP. When
// the limiter store fails the request is let through.
func RateLimit(limiter Allower, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ClientIDFromContext(r.Context())
			if id == "" {
				id = "ip:" + clientIPForRateLimit(r)
			}
			decision, err := limiter.Allow(r.Context(), id)
			if err != nil {
				if rl, ok := ratelimit.IsRateLimited(err); ok {
					retryAfter := int(time.Until(rl.EmbargoEnd).Seconds()) + 1
					if retryAfter < 1 {
						retryAfter = 1
					}
					w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
					writeError(w, http.StatusTooManyRequests, "rate_limited",
						"too many try-on requests, please wait before trying again",
						map[string]any{"embargoEndTime": rl.EmbargoEndMillis()})
					return
				}
				logger.Error().Err(err).Str("client_id", id).Msg("rate limiter unavailable, allowing request")
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			next.ServeHTTP(w, r)
		})
	}
}

func clientIPForRateLimit(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		for _, part := range strings.Split(xf, ",") {
			ip := strings.TrimSpace(part)
			if ip == "" {
				continue
			}
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		if net.ParseIP(host) != nil {
			return host
		}
	} else if net.ParseIP(r.RemoteAddr) != nil {
		return r.RemoteAddr
	}

	return r.RemoteAddr
}
