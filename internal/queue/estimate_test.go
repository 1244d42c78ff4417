package queue

import (
	"testing"
	"time"

	"qms/waitlist-service/internal/models"
)

func history(base time.Time, waits ...time.Duration) []models.HistoryEntry {
	samples := make([]models.HistoryEntry, 0, len(waits))
	for i, wait := range waits {
		joined := base.Add(time.Duration(i) * time.Hour)
		samples = append(samples, models.HistoryEntry{
			ID:             string(rune('a' + i)),
			JoinedAt:       joined,
			CompletionTime: joined.Add(wait),
		})
	}
	return samples
}

func TestEstimateWaitMinutes(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	samples := history(base, 4*time.Minute, 6*time.Minute)

	if got := EstimateWaitMinutes(1, samples, 5*time.Minute); got != 5 {
		t.Fatalf("expected 5, got %d", got)
	}
	if got := EstimateWaitMinutes(3, samples, 5*time.Minute); got != 15 {
		t.Fatalf("expected 15, got %d", got)
	}
}

func TestEstimateScalesLinearly(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	samples := history(base, 8*time.Minute, 12*time.Minute, 10*time.Minute)

	unit := EstimateWaitMinutes(1, samples, time.Minute)
	for position := 1; position <= 20; position++ {
		if got := EstimateWaitMinutes(position, samples, time.Minute); got != unit*position {
			t.Fatalf("position %d: expected %d, got %d", position, unit*position, got)
		}
	}
}

func TestEstimateEmptySampleUsesFallback(t *testing.T) {
	if got := EstimateWaitMinutes(3, nil, 5*time.Minute); got != 15 {
		t.Fatalf("expected fallback 15, got %d", got)
	}
	if got := EstimateWaitMinutes(3, []models.HistoryEntry{}, 0); got != 0 {
		t.Fatalf("expected 0 with zero fallback, got %d", got)
	}
}

func TestEstimateSkipsInvertedSamples(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	samples := history(base, -30*time.Minute, 6*time.Minute)
	if got := EstimateWaitMinutes(2, samples, time.Minute); got != 12 {
		t.Fatalf("expected 12, got %d", got)
	}

	onlyBad := history(base, -time.Minute)
	if got := EstimateWaitMinutes(2, onlyBad, 5*time.Minute); got != 10 {
		t.Fatalf("expected fallback 10, got %d", got)
	}
}

func TestEstimateRounds(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	samples := history(base, 90*time.Second)
	if got := EstimateWaitMinutes(1, samples, 0); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
	if got := EstimateWaitMinutes(3, samples, 0); got != 5 {
		t.Fatalf("expected 5, got %d", got)
	}
}

func TestEstimateNonPositivePosition(t *testing.T) {
	if got := EstimateWaitMinutes(0, nil, 5*time.Minute); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestCompletionRate(t *testing.T) {
	cases := []struct {
		completed, active, want int
	}{
		{0, 0, 0},
		{17, 3, 85},
		{1, 2, 33},
		{2, 1, 67},
		{5, 0, 100},
	}
	for _, tt := range cases {
		if got := CompletionRate(tt.completed, tt.active); got != tt.want {
			t.Fatalf("CompletionRate(%d, %d)=%d, want %d", tt.completed, tt.active, got, tt.want)
		}
	}
}

func TestMinutesSince(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	if got := MinutesSince(start, start.Add(7*time.Minute+10*time.Second)); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
	if got := MinutesSince(start, start.Add(-time.Minute)); got != 0 {
		t.Fatalf("expected 0 for future start, got %d", got)
	}
}
