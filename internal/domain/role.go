package domain

import (
	"strings"

	"github.com/google/uuid"
)

// Role is a closed set. RoleUnknown is the zero value and never grants access.
type Role uint8

const (
	RoleUnknown Role = iota
	RoleCustomer
	RoleDeliveryPartner
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleCustomer:
		return "customer"
	case RoleDeliveryPartner:
		return "delivery_partner"
	case RoleAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// Label is the human readable form used in chat display names.
func (r Role) Label() string {
	switch r {
	case RoleCustomer:
		return "Customer"
	case RoleDeliveryPartner:
		return "Delivery Partner"
	case RoleAdmin:
		return "Admin"
	default:
		return "Unknown"
	}
}

func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "customer":
		return RoleCustomer, nil
	case "delivery_partner":
		return RoleDeliveryPartner, nil
	case "admin":
		return RoleAdmin, nil
	default:
		return RoleUnknown, ErrValidationMeta("unknown role", map[string]string{"role": s})
	}
}

// Actor is the authenticated identity handed to us by the auth collaborator.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

func (a Actor) Authenticated() bool {
	return a.ID != uuid.Nil && a.Role != RoleUnknown
}

// User is the read-only profile record consulted for display names and assignment checks.
type User struct {
	ID           uuid.UUID
	Role         Role
	MobileNumber string
}

func (u User) DisplayName() string {
	return u.Role.Label() + " - " + u.MobileNumber
}

const UnknownDisplayName = "Unknown"
