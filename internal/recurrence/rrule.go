// Package recurrence parses the RRULE subset used for recurring tasks and
// computes the occurrence period a moment falls in.
package recurrence

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

type Freq int

const (
	Daily Freq = iota
	Weekly
	Monthly
)

func (f Freq) String() string {
	switch f {
	case Daily:
		return "DAILY"
	case Weekly:
		return "WEEKLY"
	case Monthly:
		return "MONTHLY"
	}
	return fmt.Sprintf("Freq(%d)", int(f))
}

var weekdayCodes = [...]string{"SU", "MO", "TU", "WE", "TH", "FR", "SA"}

func parseWeekday(code string) (time.Weekday, bool) {
	for i, c := range weekdayCodes {
		if c == code {
			return time.Weekday(i), true
		}
	}
	return 0, false
}

// Rule is a parsed recurrence. Occurrences fall on whole UTC days.
type Rule struct {
	Freq       Freq
	Interval   int            // 1 when unset
	ByDay      []time.Weekday // WEEKLY only; empty means the anchor's weekday
	ByMonthDay int            // MONTHLY only; 0 means the anchor's day
	Count      int            // 0 means unlimited
	Until      *time.Time
}

// Parse reads rules like "FREQ=WEEKLY;BYDAY=MO,TH;INTERVAL=2". An optional
// "RRULE:" prefix is accepted and keys are case-insensitive.
func Parse(s string) (Rule, error) {
	s = strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "RRULE:")
	if s == "" {
		return Rule{}, fmt.Errorf("empty rule")
	}

	r := Rule{Interval: 1}
	seenFreq := false
	for _, part := range strings.Split(s, ";") {
		if part == "" {
			continue
		}
		key, val, ok := strings.Cut(part, "=")
		if !ok {
			return Rule{}, fmt.Errorf("invalid rule part %q", part)
		}
		switch key {
		case "FREQ":
			switch val {
			case "DAILY":
				r.Freq = Daily
			case "WEEKLY":
				r.Freq = Weekly
			case "MONTHLY":
				r.Freq = Monthly
			default:
				return Rule{}, fmt.Errorf("unsupported frequency %q", val)
			}
			seenFreq = true
		case "INTERVAL":
			n, err := strconv.Atoi(val)
			if err != nil || n < 1 {
				return Rule{}, fmt.Errorf("invalid interval %q", val)
			}
			r.Interval = n
		case "BYDAY":
			for _, code := range strings.Split(val, ",") {
				wd, ok := parseWeekday(strings.TrimSpace(code))
				if !ok {
					return Rule{}, fmt.Errorf("unknown weekday %q", code)
				}
				r.ByDay = append(r.ByDay, wd)
			}
		case "BYMONTHDAY":
			n, err := strconv.Atoi(val)
			if err != nil || n < 1 || n > 28 {
				return Rule{}, fmt.Errorf("BYMONTHDAY must be 1-28, got %q", val)
			}
			r.ByMonthDay = n
		case "COUNT":
			n, err := strconv.Atoi(val)
			if err != nil || n < 1 {
				return Rule{}, fmt.Errorf("invalid count %q", val)
			}
			r.Count = n
		case "UNTIL":
			t, err := time.Parse("20060102T150405Z", val)
			if err != nil {
				if t, err = time.Parse("20060102", val); err != nil {
					return Rule{}, fmt.Errorf("invalid UNTIL %q", val)
				}
			}
			t = t.UTC()
			r.Until = &t
		default:
			return Rule{}, fmt.Errorf("unsupported rule key %q", key)
		}
	}
	if !seenFreq {
		return Rule{}, fmt.Errorf("FREQ is required")
	}
	if len(r.ByDay) > 0 && r.Freq != Weekly {
		return Rule{}, fmt.Errorf("BYDAY requires FREQ=WEEKLY")
	}
	if r.ByMonthDay > 0 && r.Freq != Monthly {
		return Rule{}, fmt.Errorf("BYMONTHDAY requires FREQ=MONTHLY")
	}
	sort.Slice(r.ByDay, func(i, j int) bool { return mondayIndex(r.ByDay[i]) < mondayIndex(r.ByDay[j]) })
	return r, nil
}

// String renders the canonical form of the rule.
func (r Rule) String() string {
	parts := []string{"FREQ=" + r.Freq.String()}
	if r.Interval > 1 {
		parts = append(parts, "INTERVAL="+strconv.Itoa(r.Interval))
	}
	if len(r.ByDay) > 0 {
		codes := make([]string, len(r.ByDay))
		for i, d := range r.ByDay {
			codes[i] = weekdayCodes[d]
		}
		parts = append(parts, "BYDAY="+strings.Join(codes, ","))
	}
	if r.ByMonthDay > 0 {
		parts = append(parts, "BYMONTHDAY="+strconv.Itoa(r.ByMonthDay))
	}
	if r.Count > 0 {
		parts = append(parts, "COUNT="+strconv.Itoa(r.Count))
	}
	if r.Until != nil {
		parts = append(parts, "UNTIL="+r.Until.Format("20060102T150405Z"))
	}
	return strings.Join(parts, ";")
}

// Describe returns a short English description, e.g. "Every 2 weeks on Mon, Thu".
func (r Rule) Describe() string {
	var unit string
	switch r.Freq {
	case Daily:
		unit = "day"
	case Weekly:
		unit = "week"
	case Monthly:
		unit = "month"
	}

	desc := "Every " + unit
	if r.Interval > 1 {
		desc = fmt.Sprintf("Every %d %ss", r.Interval, unit)
	}
	if len(r.ByDay) > 0 {
		names := make([]string, len(r.ByDay))
		for i, d := range r.ByDay {
			names[i] = d.String()[:3]
		}
		desc += " on " + strings.Join(names, ", ")
	}
	if r.ByMonthDay > 0 {
		desc += fmt.Sprintf(" on day %d", r.ByMonthDay)
	}
	return desc
}

func mondayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}
