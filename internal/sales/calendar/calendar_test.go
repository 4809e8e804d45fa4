package calendar

import (
	"testing"
	"time"

	"github.com/xtxerr/etos/internal/errors"
)

func TestDerive(t *testing.T) {
	tests := []struct {
		code string
		year int
		week int
	}{
		{"20230102", 2023, 1},  // Monday of ISO week 1
		{"20230105", 2023, 1},  // Thursday, same week
		{"20230101", 2022, 52}, // Sunday belongs to the previous ISO year
		{"20201231", 2020, 53}, // 2020 has 53 ISO weeks
		{"20210103", 2020, 53},
		{"20210104", 2021, 1},
		{"20241230", 2025, 1}, // Monday of 2025-W01
		{"20240229", 2024, 9}, // leap day
		{"20231231", 2023, 52},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			k, err := Derive(tt.code)
			if err != nil {
				t.Fatalf("Derive: %v", err)
			}
			if k.Year != tt.year || k.Week != tt.week {
				t.Errorf("Derive(%s) = %d-W%02d, want %d-W%02d", tt.code, k.Year, k.Week, tt.year, tt.week)
			}
		})
	}
}

func TestDeriveInvalid(t *testing.T) {
	codes := []string{
		"",
		"2023010",   // 7 digits
		"202301021", // 9 digits
		"2023-01-02",
		"2023O102", // letter O
		"20230230", // no Feb 30
		"20231301", // no month 13
		"20230100", // day 0
		"20230229", // 2023 is not a leap year
		" 2023010",
	}

	for _, code := range codes {
		_, err := Derive(code)
		if err == nil {
			t.Errorf("Derive(%q): expected error", code)
			continue
		}
		if !errors.Is(err, errors.ErrInvalidDateCode) {
			t.Errorf("Derive(%q): expected ErrInvalidDateCode, got %v", code, err)
		}
	}
}

// Every day of several years yields a week in [1,53] and (year, week) never
// decreases as the date advances.
func TestDeriveRangeAndMonotonic(t *testing.T) {
	start := time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2030, 12, 31, 0, 0, 0, 0, time.UTC)

	prev, err := Derive(start.Format(CodeLayout))
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}

	for d := start.AddDate(0, 0, 1); !d.After(end); d = d.AddDate(0, 0, 1) {
		code := d.Format(CodeLayout)
		k, err := Derive(code)
		if err != nil {
			t.Fatalf("Derive(%s): %v", code, err)
		}
		if k.Week < 1 || k.Week > 53 {
			t.Fatalf("Derive(%s): week %d out of range", code, k.Week)
		}
		if k.Year < prev.Year || (k.Year == prev.Year && k.Week < prev.Week) {
			t.Fatalf("Derive(%s) = %s decreased from %s", code, k, prev)
		}
		prev = k
	}
}
