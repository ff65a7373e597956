package budget

import (
	"time"

	"github.com/dukerupert/allowance/internal/model"
)

// PeriodBounds returns the half-open [start, end) window containing t.
// Weeks start on Monday and months on the 1st, both in UTC.
func PeriodBounds(p model.BudgetPeriod, t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	switch p {
	case model.PeriodMonthly:
		start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0)
	default:
		offset := (int(day.Weekday()) + 6) % 7
		start := day.AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 7)
	}
}
