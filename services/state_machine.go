package services

import "companion-service/models"

// transitions is the full lifecycle table. Requesting the current status
// again is not listed anywhere, so a no-op request fails as an invalid
// transition; callers are expected to check state first.
var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.StatusPendingPayment: {models.StatusConfirmed, models.StatusCancelled},
	models.StatusConfirmed:      {models.StatusInService, models.StatusCancelled},
	models.StatusInService:      {models.StatusCompleted, models.StatusCancelled},
	// completed and cancelled are terminal
}

func transitionAllowed(from, to models.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// milestoneForTransition maps a transition target to the audit step recorded
// alongside it. For in_service the companion supplies the concrete step
// (arrived, registered, ...); "accepted" is the default when none is given.
func milestoneForTransition(to models.OrderStatus, requestedStep string) string {
	switch to {
	case models.StatusConfirmed:
		return models.StepConfirmed
	case models.StatusInService:
		// The completion milestone is reserved for the completed transition.
		if rank, ok := models.MilestoneRank[requestedStep]; ok && rank < models.MilestoneRank[models.StepCompleted] {
			return requestedStep
		}
		return models.StepAccepted
	case models.StatusCompleted:
		return models.StepCompleted
	default:
		return ""
	}
}
