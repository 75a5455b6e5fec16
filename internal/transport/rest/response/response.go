package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/logger"
	appCtx "github.com/baechuer/real-time-ressys/services/delivery-service/internal/pkg/context"
)

// Envelope is the success envelope:
// {"data": ...}
type Envelope struct {
	Data any `json:"data,omitempty"`
}

// ErrorBody:
// {"error":{"code":"...","message":"...","meta":{...},"request_id":"..."}}
type ErrorBody struct {
	Error ErrorPayload `json:"error"`
}

type ErrorPayload struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Meta      map[string]string `json:"meta,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// JSON writes raw JSON with Content-Type.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Data wraps payload with {"data": ...}
func Data(w http.ResponseWriter, status int, payload any) {
	JSON(w, status, Envelope{Data: payload})
}

func Fail(w http.ResponseWriter, r *http.Request, status int, code, message string, meta map[string]string) {
	JSON(w, status, ErrorBody{
		Error: ErrorPayload{
			Code:      code,
			Message:   message,
			Meta:      meta,
			RequestID: appCtx.GetRequestID(r.Context()),
		},
	})
}

// StatusOf maps the domain error taxonomy onto HTTP status codes.
func StatusOf(err error) int {
	switch domain.CodeOf(err) {
	case domain.CodePermissionDenied:
		return http.StatusForbidden
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeValidation, domain.CodeInvalidTransition:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Err writes err using the taxonomy. Internal errors are logged and never leak detail.
func Err(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)

	var ae *domain.AppError
	if status == http.StatusInternalServerError || !errors.As(err, &ae) {
		logger.WithCtx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("internal error")
		Fail(w, r, http.StatusInternalServerError, string(domain.CodeInternal), "internal server error", nil)
		return
	}
	Fail(w, r, status, string(ae.Code), ae.Message, ae.Meta)
}
