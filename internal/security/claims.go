package security

import (
	"strings"
	"time"

	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/domain"
	"github.com/google/uuid"
)

// TokenClaims is what the auth service signs into an access token.
type TokenClaims struct {
	UserID  string
	Role    string
	Ver     int64
	Exp     time.Time
	Issuer  string
	Subject string
}

// Actor maps verified claims onto a domain identity. The uid claim wins over
// sub. Unrecognised roles become RoleUnknown, which the permission gate
// always refuses.
func (c TokenClaims) Actor() (domain.Actor, error) {
	raw := strings.TrimSpace(c.UserID)
	if raw == "" {
		raw = strings.TrimSpace(c.Subject)
	}
	uid, err := uuid.Parse(raw)
	if err != nil || uid == uuid.Nil {
		return domain.Actor{}, ErrTokenInvalid
	}
	role, err := domain.ParseRole(c.Role)
	if err != nil {
		role = domain.RoleUnknown
	}
	return domain.Actor{ID: uid, Role: role}, nil
}
