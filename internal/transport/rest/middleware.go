package rest

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/security"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/transport/rest/response"
	"github.com/go-chi/httprate"
)

type AuthOptions struct {
	// If set (non-empty), enforce exact issuer match.
	ExpectedIssuer string
}

func AuthMiddleware(verifier security.AccessTokenVerifier, opt AuthOptions) func(next http.Handler) http.Handler {
	if verifier == nil {
		panic("AuthMiddleware: nil verifier")
	}

	unauthorized := func(w http.ResponseWriter, r *http.Request) {
		response.Fail(w, r, http.StatusUnauthorized, "unauthorized", "unauthorized", nil)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// expired, invalid and wrong-issuer tokens all map to 401
			actor, err := security.Authenticate(verifier, security.BearerToken(r.Header.Get("Authorization")), opt.ExpectedIssuer)
			if err != nil {
				unauthorized(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(withActor(r.Context(), actor)))
		})
	}
}

// Limiter is the shared fixed-window limiter (Redis).
type Limiter interface {
	AllowRequest(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type RateLimitOptions struct {
	Limit  int
	Window time.Duration
}

// RateLimitMiddleware uses the shared limiter when one is configured, otherwise an
// in-process limiter keyed by client IP.
func RateLimitMiddleware(l Limiter, opt RateLimitOptions) func(next http.Handler) http.Handler {
	if opt.Limit <= 0 {
		opt.Limit = 100
	}
	if opt.Window <= 0 {
		opt.Window = time.Minute
	}
	if l == nil {
		return httprate.LimitByIP(opt.Limit, opt.Window)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, _ := l.AllowRequest(r.Context(), "rl:delivery:"+clientIP(r), opt.Limit, opt.Window)
			if !allowed {
				response.Fail(w, r, http.StatusTooManyRequests, "rate_limited", "too many requests", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP keeps it simple: RemoteAddr host part. chi's RealIP runs first when
// the service sits behind a trusted proxy.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// restrictive policy for JSON-only endpoints
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'; base-uri 'none'; form-action 'none'")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cross-Origin-Resource-Policy", "same-site")
		w.Header().Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=(), usb=(), bluetooth=()")

		next.ServeHTTP(w, r)
	})
}
