package queue

import (
	"math"
	"time"

	"qms/waitlist-service/internal/models"
)

// EstimateWaitMinutes projects the wait for position from the mean completion time of the
// sample. With no usable sample it falls back to fallbackPerPosition for each place.
func EstimateWaitMinutes(position int, samples []models.HistoryEntry, fallbackPerPosition time.Duration) int {
	if position <= 0 {
		return 0
	}
	avg, ok := MeanWait(samples)
	if !ok {
		avg = fallbackPerPosition
	}
	if avg <= 0 {
		return 0
	}
	return int(math.Round(avg.Minutes() * float64(position)))
}

// MeanWait averages completion minus join over the sample, skipping rows completed before
// they joined. ok is false when nothing usable remains.
func MeanWait(samples []models.HistoryEntry) (time.Duration, bool) {
	var total time.Duration
	count := 0
	for _, sample := range samples {
		wait := sample.CompletionTime.Sub(sample.JoinedAt)
		if wait < 0 {
			continue
		}
		total += wait
		count++
	}
	if count == 0 {
		return 0, false
	}
	return total / time.Duration(count), true
}

// CompletionRate is completed / (completed + active) as a whole percentage.
func CompletionRate(completed, active int) int {
	total := completed + active
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}

// MinutesSince is the whole number of minutes elapsed from start to now.
func MinutesSince(start, now time.Time) int {
	if now.Before(start) {
		return 0
	}
	return int(math.Round(now.Sub(start).Minutes()))
}
