package order

import (
	"fmt"
	"time"
)

// FormatNumber renders the human-readable order number for the n-th order of
// the day (1-based): YYYYMMDD-NNN, NNN zero-padded to 3 digits. Sequences
// reset implicitly each calendar day because numbering only counts same-day
// orders. Gaps are fine; uniqueness of (storeID, orderNo) is enforced by the
// storage layer plus a creation retry.
func FormatNumber(day time.Time, n int64) string {
	return fmt.Sprintf("%s-%03d", day.Format("20060102"), n)
}

// DayBounds returns [start, end) of ref's calendar day in ref's location.
func DayBounds(ref time.Time) (time.Time, time.Time) {
	start := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, ref.Location())
	return start, start.Add(24 * time.Hour)
}
