package security

import (
	"strings"

	"github.com/baechuer/real-time-ressys/services/delivery-service/internal/domain"
)

type AccessTokenVerifier interface {
	VerifyAccessToken(token string) (TokenClaims, error)
}

// BearerToken extracts the token from an "Authorization: Bearer <jwt>" header value.
func BearerToken(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// Authenticate verifies raw and resolves it to the acting user. A non-empty
// issuer must match exactly.
func Authenticate(v AccessTokenVerifier, raw, issuer string) (domain.Actor, error) {
	if raw == "" {
		return domain.Actor{}, ErrTokenMissing
	}
	claims, err := v.VerifyAccessToken(raw)
	if err != nil {
		return domain.Actor{}, err
	}
	if issuer != "" && claims.Issuer != issuer {
		return domain.Actor{}, ErrIssuerInvalid
	}
	return claims.Actor()
}
