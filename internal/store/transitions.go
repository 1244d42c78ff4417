package store

import "qms/waitlist-service/internal/models"

// transitionMap lists, per target status, the statuses an admin may move an entry from.
var transitionMap = map[string][]string{
	models.StatusActive:    {models.StatusCheckedIn, models.StatusRemoved},
	models.StatusCheckedIn: {models.StatusActive},
	models.StatusCompleted: {models.StatusActive, models.StatusCheckedIn},
	models.StatusRemoved:   {models.StatusActive, models.StatusCheckedIn},
}

func KnownStatus(status string) bool {
	_, ok := transitionMap[status]
	return ok
}

func ValidTransition(toStatus, fromStatus string) bool {
	allowed, ok := transitionMap[toStatus]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == fromStatus {
			return true
		}
	}
	return false
}

func CanCheckIn(status string) bool {
	return status == models.StatusActive || status == models.StatusCheckedIn
}
