package security

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// HS256Verifier checks access tokens signed with the secret shared with auth-service.
type HS256Verifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewHS256Verifier(secret string) *HS256Verifier {
	return &HS256Verifier{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		),
	}
}

type accessClaims struct {
	UserID string `json:"uid"`
	Role   string `json:"role"`
	Ver    int64  `json:"ver"`
	jwt.RegisteredClaims
}

func (v *HS256Verifier) key(*jwt.Token) (any, error) { return v.secret, nil }

func (v *HS256Verifier) VerifyAccessToken(token string) (TokenClaims, error) {
	var ac accessClaims
	parsed, err := v.parser.ParseWithClaims(token, &ac, v.key)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return TokenClaims{}, ErrTokenExpired
	case err != nil, !parsed.Valid:
		return TokenClaims{}, ErrTokenInvalid
	}

	tc := TokenClaims{
		UserID:  ac.UserID,
		Role:    ac.Role,
		Ver:     ac.Ver,
		Issuer:  ac.Issuer,
		Subject: ac.Subject,
	}
	if ac.ExpiresAt != nil {
		tc.Exp = ac.ExpiresAt.Time
	}
	return tc, nil
}
