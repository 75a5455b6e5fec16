package rest

import (
	"net/http"

	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/metrics"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/security"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/transport/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterDeps struct {
	Handler   *Handler
	Live      *ws.Handler
	Health    *HealthHandler
	Verifier  security.AccessTokenVerifier
	JWTIssuer string

	// Limiter may be nil: the in-process limiter is used instead.
	Limiter   Limiter
	RateLimit *RateLimitOptions
}

func NewRouter(d RouterDeps) http.Handler {
	if d.Handler == nil {
		panic("rest.NewRouter: nil handler")
	}
	if d.Verifier == nil {
		panic("rest.NewRouter: nil verifier")
	}
	if d.Health == nil {
		d.Health = NewHealthHandler(nil)
	}

	r := chi.NewRouter()

	// Request ID + structured access log
	r.Use(RequestID)
	r.Use(HTTPLogger)
	r.Use(metrics.Middleware)

	// Panic recovery
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(SecurityHeaders)

	r.Get("/healthz", d.Health.Healthz)
	r.Get("/readyz", d.Health.Readyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if d.RateLimit != nil {
			r.Use(RateLimitMiddleware(d.Limiter, *d.RateLimit))
		}

		if d.Live != nil {
			// the live channel authenticates itself: browsers cannot send headers on upgrade
			r.Get("/ws/bookings/{bookingID}", d.Live.Booking)
			r.Get("/ws/admin/notifications", d.Live.AdminFeed)
		}

		r.Route("/api/v1", func(r chi.Router) {
			r.Use(AuthMiddleware(d.Verifier, AuthOptions{ExpectedIssuer: d.JWTIssuer}))

			r.Post("/bookings", d.Handler.CreateBooking)
			r.Get("/bookings", d.Handler.ListBookings)
			r.Get("/bookings/{bookingID}", d.Handler.GetBooking)
			r.Get("/bookings/{bookingID}/history", d.Handler.History)

			r.Post("/bookings/{bookingID}/assign", d.Handler.Assign)
			r.Post("/bookings/{bookingID}/status", d.Handler.UpdateStatus)
			r.Post("/bookings/{bookingID}/cancel", d.Handler.Cancel)

			r.Get("/bookings/{bookingID}/chat/messages", d.Handler.ChatHistory)
			r.Post("/bookings/{bookingID}/chat/messages", d.Handler.SendMessage)
		})
	})

	return r
}
