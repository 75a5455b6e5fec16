package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/audit"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/broadcast"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/logger"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/metrics"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/security"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/service"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/transport/rest/response"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	channelBooking = "booking"
	channelAdmin   = "admin"
)

type Options struct {
	SendBuffer int
	// AllowedOrigins: empty means same-origin only, "*" allows any origin.
	AllowedOrigins []string
	ExpectedIssuer string
}

// Handler admits live connections. Every check runs before the upgrade so a
// refused client gets a plain HTTP status and never joins a group.
type Handler struct {
	chat     *service.ChatService
	bus      *broadcast.Bus
	verifier security.AccessTokenVerifier
	audit    *audit.Logger
	opt      Options
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[*Session]struct{}
}

func NewHandler(chat *service.ChatService, bus *broadcast.Bus, verifier security.AccessTokenVerifier, al *audit.Logger, opt Options) *Handler {
	if chat == nil || bus == nil || verifier == nil {
		panic("ws.NewHandler: nil dependency")
	}
	h := &Handler{
		chat:     chat,
		bus:      bus,
		verifier: verifier,
		audit:    al,
		opt:      opt,
		sessions: make(map[*Session]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(opt.AllowedOrigins),
	}
	return h
}

// inbound is the only frame a client may send on a booking channel.
type inbound struct {
	Message  string `json:"message"`
	SenderID string `json:"senderId,omitempty"`
}

// Booking serves GET /ws/bookings/{bookingID}.
func (h *Handler) Booking(w http.ResponseWriter, r *http.Request) {
	actor, err := h.authenticate(r)
	if err != nil {
		h.reject(w, r, uuid.Nil, uuid.Nil, http.StatusUnauthorized, "unauthorized", "invalid or missing token")
		return
	}

	bookingID, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		h.reject(w, r, uuid.Nil, actor.ID, http.StatusNotFound, "not_found", "booking not found")
		return
	}

	if _, err := h.chat.Authorize(r.Context(), actor, bookingID); err != nil {
		if code := domain.CodeOf(err); code != domain.CodeInternal {
			h.recordRejection(r, bookingID, actor.ID, string(code))
		}
		response.Err(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already written the HTTP error
		logger.WithCtx(r.Context()).Warn().Err(err).Str("booking_id", bookingID.String()).Msg("ws upgrade failed")
		return
	}

	s := newSession(conn, actor, bookingID, broadcast.BookingGroup(bookingID), h.opt.SendBuffer)
	ctx := context.WithoutCancel(r.Context())
	h.serve(ctx, s, channelBooking, func(payload []byte) { h.handleInbound(ctx, s, payload) })
}

// AdminFeed serves GET /ws/admin/notifications. The feed is push-only.
func (h *Handler) AdminFeed(w http.ResponseWriter, r *http.Request) {
	actor, err := h.authenticate(r)
	if err != nil {
		h.reject(w, r, uuid.Nil, uuid.Nil, http.StatusUnauthorized, "unauthorized", "invalid or missing token")
		return
	}
	if actor.Role != domain.RoleAdmin {
		h.reject(w, r, uuid.Nil, actor.ID, http.StatusForbidden, string(domain.CodePermissionDenied), "admin only")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WithCtx(r.Context()).Warn().Err(err).Msg("ws upgrade failed")
		return
	}

	s := newSession(conn, actor, uuid.Nil, broadcast.AdminGroup, h.opt.SendBuffer)
	h.serve(context.WithoutCancel(r.Context()), s, channelAdmin, func([]byte) {})
}

// serve owns the session lifecycle: open, join, pump, leave.
func (h *Handler) serve(ctx context.Context, s *Session, channel string, onMessage func([]byte)) {
	lc := logger.WithCtx(ctx).With().
		Str("session_id", s.ID.String()).
		Str("user_id", s.Actor.ID.String()).
		Str("group", s.Group)
	if s.BookingID != uuid.Nil {
		lc = lc.Str("booking_id", s.BookingID.String())
	}
	log := lc.Logger()

	s.open()
	h.track(s)
	h.bus.Join(s.Group, s)
	metrics.LiveSessions.WithLabelValues(channel).Inc()
	log.Info().Msg("ws session opened")

	var readErr error
	defer func() {
		// leave before close: a closed session still in the group counts as a drop
		h.bus.Leave(s.Group, s)
		s.Close()
		h.untrack(s)
		metrics.LiveSessions.WithLabelValues(channel).Dec()
		log.Info().Str("reason", closeReason(readErr)).Msg("ws session closed")
	}()

	go s.writePump()
	readErr = s.readPump(onMessage)
}

func (h *Handler) track(s *Session) {
	h.mu.Lock()
	h.sessions[s] = struct{}{}
	h.mu.Unlock()
}

func (h *Handler) untrack(s *Session) {
	h.mu.Lock()
	delete(h.sessions, s)
	h.mu.Unlock()
}

// CloseAll closes every open session. http.Server.Shutdown does not track
// hijacked connections, so this runs on shutdown.
func (h *Handler) CloseAll() int {
	h.mu.Lock()
	open := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		open = append(open, s)
	}
	h.mu.Unlock()

	for _, s := range open {
		s.Close()
	}
	return len(open)
}

// Open reports the number of live sessions.
func (h *Handler) Open() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

func (h *Handler) handleInbound(ctx context.Context, s *Session, payload []byte) {
	var in inbound
	if err := json.Unmarshal(payload, &in); err != nil {
		h.sendError(s, domain.ErrValidation("malformed message"))
		return
	}
	if sid := strings.TrimSpace(in.SenderID); sid != "" {
		id, err := uuid.Parse(sid)
		if err != nil || id != s.Actor.ID {
			h.sendError(s, domain.ErrValidationMeta("senderId does not match the authenticated user",
				map[string]string{"senderId": sid}))
			return
		}
	}

	// the sender receives its own message through the group publish
	if _, _, err := h.chat.Send(ctx, s.Actor, s.BookingID, in.Message); err != nil {
		if domain.CodeOf(err) == domain.CodeInternal {
			logger.WithCtx(ctx).Error().Err(err).Str("booking_id", s.BookingID.String()).Msg("chat send failed")
		}
		h.sendError(s, err)
	}
}

func (h *Handler) sendError(s *Session, err error) {
	b, mErr := json.Marshal(broadcast.NewError(err))
	if mErr != nil {
		return
	}
	s.Deliver(b)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request, bookingID, userID uuid.UUID, status int, reason, msg string) {
	h.recordRejection(r, bookingID, userID, reason)
	response.Fail(w, r, status, reason, msg, nil)
}

func (h *Handler) recordRejection(r *http.Request, bookingID, userID uuid.UUID, reason string) {
	metrics.SessionsRejected.WithLabelValues(reason).Inc()
	if h.audit != nil {
		h.audit.SessionRejected(r.Context(), bookingID, userID, reason)
	}
}

// authenticate accepts "Authorization: Bearer <jwt>" or ?token=<jwt>, since
// browsers cannot set headers on a websocket handshake.
func (h *Handler) authenticate(r *http.Request) (domain.Actor, error) {
	raw := security.BearerToken(r.Header.Get("Authorization"))
	if raw == "" {
		raw = strings.TrimSpace(r.URL.Query().Get("token"))
	}
	return security.Authenticate(h.verifier, raw, h.opt.ExpectedIssuer)
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return nil // gorilla default: same origin
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.ToLower(strings.TrimRight(o, "/"))] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		_, ok := set[strings.ToLower(u.Scheme+"://"+u.Host)]
		return ok
	}
}
