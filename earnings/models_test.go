package earnings

import (
	"testing"
	"time"
)

func TestCurrentWindow(t *testing.T) {
	tests := []struct {
		name      string
		now       time.Time
		wantStart time.Time
		wantEnd   time.Time
	}{
		{
			name:      "mid month",
			now:       time.Date(2025, 3, 15, 12, 30, 0, 0, time.UTC),
			wantStart: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "first instant of month",
			now:       time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			wantStart: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "last nanosecond of month",
			now:       time.Date(2025, 3, 31, 23, 59, 59, 999999999, time.UTC),
			wantStart: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "december rolls into next year",
			now:       time.Date(2024, 12, 25, 8, 0, 0, 0, time.UTC),
			wantStart: time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "leap february",
			now:       time.Date(2024, 2, 29, 6, 0, 0, 0, time.UTC),
			wantStart: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "non-UTC input is normalized",
			now:       time.Date(2025, 6, 1, 3, 0, 0, 0, time.FixedZone("JST", 9*3600)), // 2025-05-31T18:00Z
			wantStart: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := CurrentWindow(tt.now)
			if !start.Equal(tt.wantStart) {
				t.Errorf("start = %v, want %v", start, tt.wantStart)
			}
			if !end.Equal(tt.wantEnd) {
				t.Errorf("end = %v, want %v", end, tt.wantEnd)
			}
			if start.Location() != time.UTC || end.Location() != time.UTC {
				t.Errorf("window not in UTC: start %v, end %v", start.Location(), end.Location())
			}
		})
	}
}

func TestCurrentWindowBoundaryIsExclusive(t *testing.T) {
	// An event at exactly the end bound belongs to the next window.
	start, end := CurrentWindow(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC))

	nextStart, _ := CurrentWindow(end)
	if !nextStart.Equal(end) {
		t.Errorf("next window starts at %v, want %v", nextStart, end)
	}
	if !end.After(start) {
		t.Errorf("end %v not after start %v", end, start)
	}
}
