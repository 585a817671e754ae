// Package billingcycle computes the next billing date for a recurring
// subscription given its cycle.
package billingcycle

import (
	"fmt"
	"time"

	"github.com/subsage-app/subsage-backend/pkg/enums"
	pkgerrors "github.com/subsage-app/subsage-backend/pkg/errors"
)

// ErrInvalidCycle marks an unrecognized billing cycle. Callers surface
// it as a validation failure rather than guessing a default.
var ErrInvalidCycle = pkgerrors.New(pkgerrors.CodeValidation, "invalid billing cycle")

// Next returns the billing date that follows current for the given
// cycle. Weekly adds seven days. Monthly and yearly advance the
// calendar unit and clamp the day to the target month's length, so
// Jan 31 rolls to Feb 29 in a leap year rather than overflowing into
// March.
func Next(current time.Time, cycle enums.BillingCycle) (time.Time, error) {
	switch cycle {
	case enums.BillingCycleWeekly:
		return current.AddDate(0, 0, 7), nil
	case enums.BillingCycleMonthly:
		return addMonthsClamped(current, 1), nil
	case enums.BillingCycleYearly:
		return addYearsClamped(current, 1), nil
	default:
		return time.Time{}, pkgerrors.Wrap(
			pkgerrors.CodeValidation,
			ErrInvalidCycle,
			fmt.Sprintf("unknown billing cycle %q", cycle),
		)
	}
}

// addMonthsClamped advances by whole months, keeping the day of month
// when it exists in the target month and clamping to the last day when
// it does not. time.AddDate normalizes overflow instead, which would
// turn Jan 31 + 1 month into Mar 2 or Mar 3.
func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()

	total := int(month) - 1 + months
	targetYear := year + total/12
	targetMonth := time.Month(total%12 + 1)
	if total < 0 {
		// Go truncates integer division toward zero. Borrow a year so
		// negative month offsets land in the right calendar year.
		targetYear = year + (total-11)/12
		targetMonth = time.Month((total%12+12)%12 + 1)
	}

	if last := daysIn(targetYear, targetMonth); day > last {
		day = last
	}

	hour, min, sec := t.Clock()
	return time.Date(targetYear, targetMonth, day, hour, min, sec, t.Nanosecond(), t.Location())
}

// addYearsClamped advances by whole years, clamping Feb 29 to Feb 28
// when the target year is not a leap year.
func addYearsClamped(t time.Time, years int) time.Time {
	year, month, day := t.Date()
	targetYear := year + years

	if last := daysIn(targetYear, month); day > last {
		day = last
	}

	hour, min, sec := t.Clock()
	return time.Date(targetYear, month, day, hour, min, sec, t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	// Day 0 of the following month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
