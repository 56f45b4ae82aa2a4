package staleness

import (
	"errors"
	"testing"
	"time"
)

type record struct {
	id       int64
	modified string
}

func (r record) RecordID() int64    { return r.id }
func (r record) ModifiedAt() string { return r.modified }

func TestIsStale(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		last   time.Time
		maxAge time.Duration
		want   bool
	}{
		{
			name:   "never fetched",
			last:   time.Time{},
			maxAge: 24 * time.Hour,
			want:   true,
		},
		{
			name:   "fresh",
			last:   now.Add(-10 * time.Minute),
			maxAge: time.Hour,
			want:   false,
		},
		{
			name:   "exactly at max age",
			last:   now.Add(-time.Hour),
			maxAge: time.Hour,
			want:   false,
		},
		{
			name:   "past max age",
			last:   now.Add(-time.Hour - time.Second),
			maxAge: time.Hour,
			want:   true,
		},
		{
			name:   "zero max age",
			last:   now.Add(-time.Nanosecond),
			maxAge: 0,
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsStale(tt.last, tt.maxAge, now); got != tt.want {
				t.Errorf("IsStale() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsStale_MonotonicInNow(t *testing.T) {
	last := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	maxAge := 30 * time.Minute

	stale := false
	for step := 0; step < 240; step++ {
		now := last.Add(time.Duration(step) * time.Minute)
		got := IsStale(last, maxAge, now)
		if stale && !got {
			t.Fatalf("IsStale() became fresh again at %v", now)
		}
		stale = got
	}
	if !stale {
		t.Error("IsStale() never became stale")
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{
			name:  "fractional seconds",
			input: "2023-04-05T06:07:08.123456Z",
			want:  time.Date(2023, 4, 5, 6, 7, 8, 123456000, time.UTC),
		},
		{
			name:  "whole seconds",
			input: "2023-04-05T06:07:08Z",
			want:  time.Date(2023, 4, 5, 6, 7, 8, 0, time.UTC),
		},
		{
			name:  "short fraction",
			input: "2023-04-05T06:07:08.5Z",
			want:  time.Date(2023, 4, 5, 6, 7, 8, 500000000, time.UTC),
		},
		{
			name:    "offset instead of Z",
			input:   "2023-04-05T06:07:08+02:00",
			wantErr: true,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
		{
			name:    "garbage",
			input:   "yesterday",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrTimestampFormat) {
					t.Errorf("ParseTimestamp() error = %v, want ErrTimestampFormat", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTimestamp() error = %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseTimestamp() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewerThan(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		stored string
		want   bool
	}{
		{
			name:   "nothing stored",
			remote: "2023-01-01T00:00:00Z",
			stored: "",
			want:   true,
		},
		{
			name:   "remote newer",
			remote: "2023-01-02T00:00:00Z",
			stored: "2023-01-01T00:00:00Z",
			want:   true,
		},
		{
			name:   "equal across layouts",
			remote: "2023-01-01T00:00:00.000Z",
			stored: "2023-01-01T00:00:00Z",
			want:   false,
		},
		{
			name:   "remote older",
			remote: "2022-12-31T00:00:00Z",
			stored: "2023-01-01T00:00:00Z",
			want:   false,
		},
		{
			name:   "unparseable remote treated as newer",
			remote: "soon",
			stored: "2023-01-01T00:00:00Z",
			want:   true,
		},
		{
			name:   "unparseable stored treated as newer",
			remote: "2023-01-01T00:00:00Z",
			stored: "long ago",
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewerThan(tt.remote, tt.stored); got != tt.want {
				t.Errorf("NewerThan() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChanged(t *testing.T) {
	r := record{id: 1, modified: "2023-01-02T00:00:00Z"}

	if !Changed(r, "", false) {
		t.Error("Changed() = false for unknown record, want true")
	}
	if Changed(r, "2023-01-02T00:00:00Z", true) {
		t.Error("Changed() = true for identical timestamp, want false")
	}
	if !Changed(r, "2023-01-01T00:00:00Z", true) {
		t.Error("Changed() = false for older stored timestamp, want true")
	}
}

func TestRun_Observe(t *testing.T) {
	tests := []struct {
		name      string
		threshold int
		pages     []int
		stopAt    int // index of the page that stops the scan, -1 for never
	}{
		{
			name:      "disabled",
			threshold: 0,
			pages:     []int{0, 0, 0, 0},
			stopAt:    -1,
		},
		{
			name:      "single unchanged page stops",
			threshold: 1,
			pages:     []int{3, 0, 2},
			stopAt:    1,
		},
		{
			name:      "counter resets on change",
			threshold: 2,
			pages:     []int{0, 1, 0, 4, 0, 0},
			stopAt:    5,
		},
		{
			name:      "never reached",
			threshold: 3,
			pages:     []int{0, 0, 1, 0, 0},
			stopAt:    -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := NewRun(tt.threshold)
			stopAt := -1
			for i, newer := range tt.pages {
				if run.Observe(newer) {
					stopAt = i
					break
				}
			}
			if stopAt != tt.stopAt {
				t.Errorf("stopped at page %d, want %d", stopAt, tt.stopAt)
			}
		})
	}
}

func TestRun_Reset(t *testing.T) {
	run := NewRun(2)
	run.Observe(0)
	if run.Consecutive() != 1 {
		t.Fatalf("Consecutive() = %d, want 1", run.Consecutive())
	}
	run.Reset()
	if run.Consecutive() != 0 {
		t.Errorf("Consecutive() after Reset = %d, want 0", run.Consecutive())
	}
	if NewRun(-5).Threshold != 0 {
		t.Error("negative threshold should clamp to 0")
	}
}
