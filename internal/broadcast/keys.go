package broadcast

import (
	"strings"

	"github.com/google/uuid"
)

const (
	bookingPrefix = "booking:"

	// AdminGroup receives fleet-wide notifications such as new bookings.
	AdminGroup = "admin:notifications"
)

func BookingGroup(bookingID uuid.UUID) string {
	return bookingPrefix + bookingID.String()
}

// Kind returns a low-cardinality label for key, suitable for metrics.
func Kind(key string) string {
	switch {
	case key == AdminGroup:
		return "admin"
	case strings.HasPrefix(key, bookingPrefix):
		return "booking"
	default:
		return "other"
	}
}
