// Package queue holds the derived-position and wait-estimate rules. Nothing here talks to
// the store; callers pass in rows they already fetched.
package queue

import (
	"sort"
	"time"

	"qms/waitlist-service/internal/models"
)

// Rank returns the active entries ordered by join time with 1-based positions filled in.
// Entries sharing a join timestamp keep their input order; no ordering between them is promised.
func Rank(entries []models.QueueEntry) []models.QueueEntry {
	ranked := make([]models.QueueEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.Status == models.StatusActive {
			ranked = append(ranked, entry)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].JoinedAt.Before(ranked[j].JoinedAt)
	})
	for i := range ranked {
		ranked[i].Position = i + 1
	}
	return ranked
}

// PositionOf is 1 + the number of active entries that joined strictly earlier.
func PositionOf(entries []models.QueueEntry, joinedAt time.Time) int {
	ahead := 0
	for _, entry := range entries {
		if entry.Status == models.StatusActive && entry.JoinedAt.Before(joinedAt) {
			ahead++
		}
	}
	return ahead + 1
}

// placementGap is the storage precision of join times (timestamptz keeps microseconds).
const placementGap = time.Microsecond

// JoinTimeForPlacement picks a join time that ranks an entry at position among the other
// active entries, whose join times must be sorted ascending. When no free microsecond lies
// strictly between the neighbours, shift is how far others[position-1:] must move later to
// make room; otherwise it is zero.
func JoinTimeForPlacement(others []time.Time, position int, now time.Time) (joinedAt time.Time, shift time.Duration) {
	if len(others) == 0 {
		return now.Truncate(placementGap), 0
	}
	if position <= 1 {
		return others[0].Truncate(placementGap).Add(-placementGap), 0
	}
	if position > len(others) {
		return others[len(others)-1].Truncate(placementGap).Add(placementGap), 0
	}
	before := others[position-2].Truncate(placementGap)
	after := others[position-1].Truncate(placementGap)
	mid := before.Add(after.Sub(before) / 2).Truncate(placementGap)
	if mid.After(before) && mid.Before(after) {
		return mid, 0
	}
	joinedAt = before.Add(placementGap)
	return joinedAt, joinedAt.Add(placementGap).Sub(after)
}
