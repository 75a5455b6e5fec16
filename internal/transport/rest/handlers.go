package rest

import (
	"net/http"
	"strconv"

	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/service"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/transport/rest/response"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
)

type Handler struct {
	bookings *service.BookingService
	chat     *service.ChatService
}

func NewHandler(bookings *service.BookingService, chat *service.ChatService) *Handler {
	return &Handler{bookings: bookings, chat: chat}
}

func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}

	var req createBookingRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		response.Fail(w, r, http.StatusBadRequest, string(domain.CodeValidation), "invalid body", nil)
		return
	}

	res, err := h.bookings.Create(r.Context(), actor, domain.NewBookingInput{
		FoodItems:           req.FoodItems,
		PickupAddress:       req.PickupAddress,
		DeliveryAddress:     req.DeliveryAddress,
		PhoneNumber:         req.PhoneNumber,
		AmountCents:         req.TotalAmountCents,
		SpecialInstructions: req.SpecialInstructions,
	})
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, http.StatusCreated, toBookingResponse(res.Booking))
}

func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			response.Err(w, r, domain.ErrValidationMeta("invalid query param", map[string]string{
				"limit": "must be a non-negative integer",
			}))
			return
		}
		limit = n
	}

	list, err := h.bookings.List(r.Context(), actor, limit)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	out := make([]BookingResponse, 0, len(list))
	for _, b := range list {
		out = append(out, toBookingResponse(b))
	}
	response.Data(w, http.StatusOK, out)
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndBookingID(w, r)
	if !ok {
		return
	}
	b, err := h.bookings.Get(r.Context(), actor, id)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, toBookingResponse(b))
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndBookingID(w, r)
	if !ok {
		return
	}
	hist, err := h.bookings.History(r.Context(), actor, id)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, toHistoryResponse(hist))
}

func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndBookingID(w, r)
	if !ok {
		return
	}

	var req assignRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		response.Fail(w, r, http.StatusBadRequest, string(domain.CodeValidation), "invalid body", nil)
		return
	}
	partnerID, err := uuid.Parse(req.DeliveryPartnerID)
	if err != nil {
		response.Err(w, r, domain.ErrValidationMeta("invalid delivery_partner_id", map[string]string{
			"delivery_partner_id": "must be a valid uuid",
		}))
		return
	}

	res, err := h.bookings.Assign(r.Context(), actor, id, partnerID, req.Notes)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, toBookingResponse(res.Booking))
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndBookingID(w, r)
	if !ok {
		return
	}

	var req statusRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		response.Fail(w, r, http.StatusBadRequest, string(domain.CodeValidation), "invalid body", nil)
		return
	}
	to, err := domain.ParseStatus(req.Status)
	if err != nil {
		response.Err(w, r, err)
		return
	}

	res, err := h.bookings.UpdateStatus(r.Context(), actor, id, to, req.Notes)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, toBookingResponse(res.Booking))
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndBookingID(w, r)
	if !ok {
		return
	}

	// body is optional
	var req cancelRequest
	if r.ContentLength != 0 {
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			response.Fail(w, r, http.StatusBadRequest, string(domain.CodeValidation), "invalid body", nil)
			return
		}
	}

	res, err := h.bookings.Cancel(r.Context(), actor, id, req.Notes)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, toBookingResponse(res.Booking))
}

func (h *Handler) ChatHistory(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndBookingID(w, r)
	if !ok {
		return
	}
	entries, err := h.chat.History(r.Context(), actor, id)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, map[string]any{"messages": toMessageResponses(entries)})
}

// SendMessage persists and broadcasts exactly like a frame on the live channel.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := actorAndBookingID(w, r)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		response.Fail(w, r, http.StatusBadRequest, string(domain.CodeValidation), "invalid body", nil)
		return
	}

	msg, _, err := h.chat.Send(r.Context(), actor, id, req.Message)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, http.StatusCreated, map[string]any{
		"success":   true,
		"messageId": msg.ID.String(),
	})
}

func mustActor(w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	actor, ok := ActorFrom(r.Context())
	if !ok {
		response.Fail(w, r, http.StatusUnauthorized, "unauthorized", "unauthorized", nil)
		return domain.Actor{}, false
	}
	return actor, true
}

func actorAndBookingID(w http.ResponseWriter, r *http.Request) (domain.Actor, uuid.UUID, bool) {
	actor, ok := mustActor(w, r)
	if !ok {
		return domain.Actor{}, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		response.Err(w, r, domain.ErrValidationMeta("invalid booking id", map[string]string{
			"booking_id": "must be a valid uuid",
		}))
		return domain.Actor{}, uuid.Nil, false
	}
	return actor, id, true
}
