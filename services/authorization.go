package services

import "companion-service/models"

// canTransition decides whether the actor may request the given transition.
// It only answers the permission question; reachability is the state
// machine's job.
func canTransition(order *models.Order, to models.OrderStatus, actorID string) *ServiceError {
	switch to {
	case models.StatusCancelled:
		// Either party may cancel; the system actor cancels expired orders.
		if !order.IsParty(actorID) && actorID != models.SystemActor {
			return errUnauthorized("Only the order's parties may cancel")
		}
	case models.StatusConfirmed:
		// Confirmation is payment-driven: only the verified callback path
		// acts as the system principal. A client cannot forge it.
		if actorID != models.SystemActor {
			return errUnauthorized("Order confirmation is driven by payment, not by status updates")
		}
	case models.StatusInService, models.StatusCompleted:
		// Service progress is reported by the companion, never self-reported
		// by the patient.
		if actorID != order.CompanionID {
			return errUnauthorized("Only the companion may report service progress")
		}
	default:
		if !order.IsParty(actorID) {
			return errUnauthorized("Not a party to this order")
		}
	}
	return nil
}

// canRead restricts order visibility to its two parties.
func canRead(order *models.Order, actorID string) *ServiceError {
	if !order.IsParty(actorID) {
		return errUnauthorized("Not a party to this order")
	}
	return nil
}
