package booking

import (
	"errors"
	"testing"
	"time"
)

func TestParseBookingDateFormats(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	want := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		raw  string
	}{
		{"iso", "2026-04-02"},
		{"european", "02/04/2026"},
		{"slashed iso", "2026/04/02"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseBookingDate(tc.raw, now)
			if err != nil {
				t.Fatalf("parse %q: %v", tc.raw, err)
			}
			if !got.Equal(want) {
				t.Fatalf("parse %q: got %v, want %v", tc.raw, got, want)
			}
		})
	}
}

func TestParseBookingDateRejections(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"garbage", "not-a-date"},
		{"american format", "04-02-2026"},
		{"yesterday", "2026-03-09"},
		{"last year", "09/03/2025"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseBookingDate(tc.raw, now)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("parse %q: got %v, want ValidationError", tc.raw, err)
			}
		})
	}
}

func TestParseBookingDateTodayBoundary(t *testing.T) {
	// A request dated exactly today (UTC) is accepted even late in the
	// day; yesterday is rejected.
	now := time.Date(2026, 3, 10, 23, 59, 59, 0, time.UTC)

	if _, err := ParseBookingDate("2026-03-10", now); err != nil {
		t.Fatalf("today should be accepted: %v", err)
	}
	if _, err := ParseBookingDate("2026-03-09", now); err == nil {
		t.Fatal("yesterday should be rejected")
	}
}

func TestParseDateAllowsPast(t *testing.T) {
	got, err := ParseDate("2020-01-15")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := time.Date(2020, 1, 15, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
