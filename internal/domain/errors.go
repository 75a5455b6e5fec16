package domain

import (
	"errors"
	"fmt"
)

type ErrCode string

const (
	CodePermissionDenied  ErrCode = "permission_denied"
	CodeNotFound          ErrCode = "not_found"
	CodeValidation        ErrCode = "validation_error"
	CodeInvalidTransition ErrCode = "invalid_transition"
	CodeInternal          ErrCode = "internal_error"
)

type AppError struct {
	Code    ErrCode
	Message string
	Meta    map[string]string
}

func (e *AppError) Error() string {
	if len(e.Meta) == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Meta)
}

func ErrPermissionDenied(msg string) error {
	return &AppError{Code: CodePermissionDenied, Message: msg}
}
func ErrNotFound(msg string) error   { return &AppError{Code: CodeNotFound, Message: msg} }
func ErrValidation(msg string) error { return &AppError{Code: CodeValidation, Message: msg} }
func ErrValidationMeta(msg string, meta map[string]string) error {
	return &AppError{Code: CodeValidation, Message: msg, Meta: meta}
}

// ErrInvalidTransition names both ends of the rejected transition.
func ErrInvalidTransition(from, to Status, reason string) error {
	return &AppError{
		Code:    CodeInvalidTransition,
		Message: fmt.Sprintf("invalid status transition from %s to %s: %s", from, to, reason),
		Meta:    map[string]string{"from": string(from), "to": string(to)},
	}
}

// CodeOf reports the taxonomy code of err. Errors outside the taxonomy are internal.
func CodeOf(err error) ErrCode {
	if err == nil {
		return ""
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

func IsCode(err error, code ErrCode) bool {
	return err != nil && CodeOf(err) == code
}
