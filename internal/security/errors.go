package security

import "errors"

var (
	ErrTokenMissing  = errors.New("token missing")
	ErrTokenInvalid  = errors.New("token invalid")
	ErrTokenExpired  = errors.New("token expired")
	ErrIssuerInvalid = errors.New("token issuer mismatch")
)
