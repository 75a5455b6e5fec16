package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/broadcast"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/chat"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/infrastructure/memory"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/security"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/service"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/transport/rest/response"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/transport/ws"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVerifier map[string]security.TokenClaims

func (f fakeVerifier) VerifyAccessToken(token string) (security.TokenClaims, error) {
	c, ok := f[token]
	if !ok {
		return security.TokenClaims{}, security.ErrTokenInvalid
	}
	return c, nil
}

type fakeLimiter struct{ allow bool }

func (l fakeLimiter) AllowRequest(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return l.allow, nil
}

type apiFixture struct {
	router   http.Handler
	bus      *broadcast.Bus
	customer domain.Actor
	partner  domain.Actor
	admin    domain.Actor
	stranger domain.Actor
}

func newAPIFixture(t *testing.T, limiter Limiter) *apiFixture {
	t.Helper()
	f := &apiFixture{
		bus:      broadcast.NewBus(),
		customer: domain.Actor{ID: uuid.New(), Role: domain.RoleCustomer},
		partner:  domain.Actor{ID: uuid.New(), Role: domain.RoleDeliveryPartner},
		admin:    domain.Actor{ID: uuid.New(), Role: domain.RoleAdmin},
		stranger: domain.Actor{ID: uuid.New(), Role: domain.RoleCustomer},
	}
	users := memory.NewUserDirectory(
		domain.User{ID: f.customer.ID, Role: domain.RoleCustomer, MobileNumber: "9000000001"},
		domain.User{ID: f.partner.ID, Role: domain.RoleDeliveryPartner, MobileNumber: "9000000002"},
		domain.User{ID: f.admin.ID, Role: domain.RoleAdmin, MobileNumber: "9000000003"},
	)
	repo := memory.NewBookingRepo()
	bookings := service.NewBookingService(repo, users, f.bus, nil, nil)
	chatSvc := service.NewChatService(repo, chat.NewRegistry(memory.NewChatRepo(), 0), users, f.bus, nil)

	verifier := fakeVerifier{
		"customer": {UserID: f.customer.ID.String(), Role: "customer"},
		"partner":  {UserID: f.partner.ID.String(), Role: "delivery_partner"},
		"admin":    {UserID: f.admin.ID.String(), Role: "admin"},
		"stranger": {UserID: f.stranger.ID.String(), Role: "customer"},
	}
	deps := RouterDeps{
		Handler:  NewHandler(bookings, chatSvc),
		Live:     ws.NewHandler(chatSvc, f.bus, verifier, nil, ws.Options{}),
		Verifier: verifier,
	}
	if limiter != nil {
		deps.Limiter = limiter
		deps.RateLimit = &RateLimitOptions{Limit: 10, Window: time.Minute}
	}
	f.router = NewRouter(deps)
	return f
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func decodeData[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var env struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	return env.Data
}

func decodeErr(t *testing.T, rr *httptest.ResponseRecorder) response.ErrorPayload {
	t.Helper()
	var body response.ErrorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	return body.Error
}

func (f *apiFixture) createBooking(t *testing.T) BookingResponse {
	t.Helper()
	rr := f.do(t, http.MethodPost, "/api/v1/bookings", "customer", map[string]any{
		"food_items":         "masala dosa",
		"pickup_address":     "1 Market Rd",
		"delivery_address":   "9 Hill St",
		"phone_number":       "+919000000001",
		"total_amount_cents": 2500,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decodeData[BookingResponse](t, rr)
}

func TestRouter_RequiresAuth(t *testing.T) {
	f := newAPIFixture(t, nil)

	rr := f.do(t, http.MethodGet, "/api/v1/bookings", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = f.do(t, http.MethodGet, "/api/v1/bookings", "forged", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "unauthorized", decodeErr(t, rr).Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-Id"))
}

func TestRouter_HealthAndSecurityHeaders(t *testing.T) {
	f := newAPIFixture(t, nil)

	rr := f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	rr = f.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouter_BookingLifecycle(t *testing.T) {
	f := newAPIFixture(t, nil)

	b := f.createBooking(t)
	assert.Equal(t, "pending", b.Status)
	assert.True(t, b.CanBeCancelled)
	assert.False(t, b.CanChat)
	assert.Nil(t, b.DeliveryPartnerID)

	base := "/api/v1/bookings/" + b.ID

	// customers cannot assign
	rr := f.do(t, http.MethodPost, base+"/assign", "customer", map[string]string{"delivery_partner_id": f.partner.ID.String()})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid_transition", decodeErr(t, rr).Code)

	rr = f.do(t, http.MethodPost, base+"/assign", "admin", map[string]string{"delivery_partner_id": f.partner.ID.String()})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assigned := decodeData[BookingResponse](t, rr)
	assert.Equal(t, "assigned", assigned.Status)
	assert.True(t, assigned.CanChat)
	require.NotNil(t, assigned.DeliveryPartnerID)

	// partners cannot skip
	rr = f.do(t, http.MethodPost, base+"/status", "partner", map[string]string{"status": "delivered"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	e := decodeErr(t, rr)
	assert.Equal(t, "invalid_transition", e.Code)
	assert.Equal(t, "assigned", e.Meta["from"])
	assert.Equal(t, "delivered", e.Meta["to"])

	for _, s := range []string{"started", "reached", "collected", "delivered"} {
		rr = f.do(t, http.MethodPost, base+"/status", "partner", map[string]string{"status": s})
		require.Equal(t, http.StatusOK, rr.Code, "to %s: %s", s, rr.Body.String())
	}

	rr = f.do(t, http.MethodGet, base, "customer", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	final := decodeData[BookingResponse](t, rr)
	assert.Equal(t, "delivered", final.Status)
	assert.False(t, final.CanChat)
	assert.False(t, final.CanBeCancelled)

	rr = f.do(t, http.MethodGet, base+"/history", "customer", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	hist := decodeData[[]HistoryResponse](t, rr)
	require.Len(t, hist, 6)
	assert.Equal(t, "pending", hist[0].ToStatus)
	assert.Equal(t, "delivered", hist[5].ToStatus)
}

func TestRouter_AccessAndValidation(t *testing.T) {
	f := newAPIFixture(t, nil)
	b := f.createBooking(t)
	base := "/api/v1/bookings/" + b.ID

	rr := f.do(t, http.MethodGet, base, "stranger", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = f.do(t, http.MethodGet, "/api/v1/bookings/"+uuid.NewString(), "customer", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.do(t, http.MethodGet, "/api/v1/bookings/nope", "customer", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(t, http.MethodPost, base+"/status", "admin", map[string]string{"status": "teleported"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "validation_error", decodeErr(t, rr).Code)

	rr = f.do(t, http.MethodPost, "/api/v1/bookings", "customer", map[string]any{"food_items": ""})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decodeErr(t, rr).Meta, "food_items")

	rr = f.do(t, http.MethodPost, "/api/v1/bookings", "partner", map[string]any{
		"food_items": "x", "pickup_address": "a", "delivery_address": "b", "phone_number": "9000000002",
	})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = f.do(t, http.MethodGet, "/api/v1/bookings?limit=abc", "customer", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRouter_ListScoping(t *testing.T) {
	f := newAPIFixture(t, nil)
	f.createBooking(t)
	f.createBooking(t)

	rr := f.do(t, http.MethodGet, "/api/v1/bookings", "customer", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeData[[]BookingResponse](t, rr), 2)

	rr = f.do(t, http.MethodGet, "/api/v1/bookings", "stranger", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decodeData[[]BookingResponse](t, rr))

	rr = f.do(t, http.MethodGet, "/api/v1/bookings?limit=1", "admin", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeData[[]BookingResponse](t, rr), 1)
}

func TestRouter_Cancel(t *testing.T) {
	f := newAPIFixture(t, nil)
	b := f.createBooking(t)
	base := "/api/v1/bookings/" + b.ID

	rr := f.do(t, http.MethodPost, base+"/cancel", "partner", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = f.do(t, http.MethodPost, base+"/cancel", "customer", map[string]string{"notes": "changed my mind"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	got := decodeData[BookingResponse](t, rr)
	assert.Equal(t, "cancelled", got.Status)
	require.NotNil(t, got.CancelledBy)
	assert.Equal(t, f.customer.ID.String(), *got.CancelledBy)

	rr = f.do(t, http.MethodPost, base+"/cancel", "customer", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRouter_Chat(t *testing.T) {
	f := newAPIFixture(t, nil)
	b := f.createBooking(t)
	base := "/api/v1/bookings/" + b.ID

	rr := f.do(t, http.MethodGet, base+"/chat/messages", "customer", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	empty := decodeData[map[string][]MessageResponse](t, rr)
	assert.Empty(t, empty["messages"])

	live := &captureMember{}
	id, err := uuid.Parse(b.ID)
	require.NoError(t, err)
	f.bus.Join(broadcast.BookingGroup(id), live)

	rr = f.do(t, http.MethodPost, base+"/chat/messages", "customer", map[string]string{"message": "ring twice"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	sent := decodeData[map[string]any](t, rr)
	assert.Equal(t, true, sent["success"])
	assert.NotEmpty(t, sent["messageId"])
	assert.Equal(t, 1, live.n, "http sends are broadcast like live ones")

	rr = f.do(t, http.MethodPost, base+"/chat/messages", "customer", map[string]string{"message": "  "})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(t, http.MethodPost, base+"/chat/messages", "stranger", map[string]string{"message": "hi"})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = f.do(t, http.MethodPost, "/api/v1/bookings/"+uuid.NewString()+"/chat/messages", "customer", map[string]string{"message": "hi"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "not_found", decodeErr(t, rr).Code)

	rr = f.do(t, http.MethodGet, base+"/chat/messages", "customer", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	msgs := decodeData[map[string][]MessageResponse](t, rr)["messages"]
	require.Len(t, msgs, 1)
	assert.Equal(t, "ring twice", msgs[0].Message)
	assert.Equal(t, "Customer - 9000000001", msgs[0].SenderDisplayName)
}

func TestRouter_RateLimited(t *testing.T) {
	f := newAPIFixture(t, fakeLimiter{allow: false})

	rr := f.do(t, http.MethodGet, "/api/v1/bookings", "customer", nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)

	// health checks stay outside the limiter
	rr = f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouter_LiveUpgradeThroughMiddleware(t *testing.T) {
	f := newAPIFixture(t, nil)
	b := f.createBooking(t)

	srv := httptest.NewServer(f.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/bookings/" + b.ID + "?token=customer"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err, "logger and metrics writers must support hijacking")
	defer conn.Close()
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	id, err := uuid.Parse(b.ID)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return f.bus.Members(broadcast.BookingGroup(id)) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

type captureMember struct{ n int }

func (c *captureMember) Deliver([]byte) bool {
	c.n++
	return true
}
