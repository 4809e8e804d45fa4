// Package calendar derives ISO calendar weeks from 8-digit booking date codes.
//
// Weeks follow ISO 8601: weeks start on Monday and week 1 is the week that
// contains the year's first Thursday. Dates in the first days of January can
// therefore belong to week 52 or 53 of the previous ISO year, and dates at the
// end of December to week 1 of the next.
package calendar

import (
	"time"

	"github.com/xtxerr/etos/internal/errors"
	"github.com/xtxerr/etos/internal/sales/types"
)

// CodeLayout is the layout of a booking date code.
const CodeLayout = "20060102"

// Derive parses code strictly as YYYYMMDD and returns its ISO week-year and week.
func Derive(code string) (types.CalendarKey, error) {
	t, err := Parse(code)
	if err != nil {
		return types.CalendarKey{}, err
	}
	year, week := t.ISOWeek()
	return types.CalendarKey{Year: year, Week: week}, nil
}

// Parse validates code and returns the date it denotes (UTC midnight).
func Parse(code string) (time.Time, error) {
	if len(code) != 8 {
		return time.Time{}, errors.NewInvalidDateCode(code, "want exactly 8 digits")
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return time.Time{}, errors.NewInvalidDateCode(code, "non-digit character")
		}
	}

	// time.Parse rejects out-of-range months and days such as 20230230.
	t, err := time.Parse(CodeLayout, code)
	if err != nil {
		return time.Time{}, errors.NewInvalidDateCode(code, "not a calendar date")
	}
	return t, nil
}
