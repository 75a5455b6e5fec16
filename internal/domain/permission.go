package domain

// CanAccess is the single access predicate for a booking. The history endpoint and the
// live channel admission both call it, so anyone refused one is refused the other.
func CanAccess(actor Actor, b *Booking) bool {
	if b == nil || !actor.Authenticated() {
		return false
	}
	switch actor.Role {
	case RoleAdmin:
		return true
	case RoleCustomer:
		return actor.ID == b.CustomerID
	case RoleDeliveryPartner:
		return b.DeliveryPartnerID != nil && *b.DeliveryPartnerID == actor.ID
	case RoleUnknown:
		return false
	}
	return false
}
