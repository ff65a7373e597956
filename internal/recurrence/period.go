package recurrence

import "time"

const maxSteps = 20000

// Period returns the occurrence window [start, end) containing at for a
// rule anchored at anchor. ok is false when at precedes the first
// occurrence. The final occurrence of a bounded rule has an open-ended
// period, reported with a zero end.
func Period(r Rule, anchor, at time.Time) (start, end time.Time, ok bool) {
	at = at.UTC()
	it := newWalker(r, anchor)

	n := 0
	for steps := 0; steps < maxSteps; steps++ {
		occ, more := it.next()
		if !more || (r.Until != nil && occ.After(*r.Until)) || (r.Count > 0 && n >= r.Count) {
			if start.IsZero() {
				return time.Time{}, time.Time{}, false
			}
			return start, time.Time{}, true
		}
		n++
		if occ.After(at) {
			if start.IsZero() {
				return time.Time{}, time.Time{}, false
			}
			return start, occ, true
		}
		start = occ
	}
	return time.Time{}, time.Time{}, false
}

// Next returns the first occurrence strictly after at.
func Next(r Rule, anchor, at time.Time) (time.Time, bool) {
	at = at.UTC()
	it := newWalker(r, anchor)
	for steps, n := 0, 0; steps < maxSteps; steps++ {
		occ, more := it.next()
		if !more || (r.Until != nil && occ.After(*r.Until)) || (r.Count > 0 && n >= r.Count) {
			return time.Time{}, false
		}
		n++
		if occ.After(at) {
			return occ, true
		}
	}
	return time.Time{}, false
}

// walker yields occurrence days in order starting at the anchor's day.
type walker struct {
	r      Rule
	anchor time.Time
	cur    time.Time
	idx    int
	begun  bool
}

func newWalker(r Rule, anchor time.Time) *walker {
	if r.Interval < 1 {
		r.Interval = 1
	}
	return &walker{r: r, anchor: day(anchor)}
}

func (w *walker) next() (time.Time, bool) {
	switch w.r.Freq {
	case Daily:
		return w.step(w.r.Interval), true
	case Weekly:
		if len(w.r.ByDay) == 0 {
			return w.step(7 * w.r.Interval), true
		}
		return w.weeklyByDay(), true
	case Monthly:
		return w.monthly(), true
	}
	return time.Time{}, false
}

func (w *walker) step(days int) time.Time {
	if !w.begun {
		w.begun = true
		w.cur = w.anchor
		return w.cur
	}
	w.cur = w.cur.AddDate(0, 0, days)
	return w.cur
}

func (w *walker) weeklyByDay() time.Time {
	if !w.begun {
		w.begun = true
		w.cur = monday(w.anchor)
		w.idx = -1
	}
	for {
		w.idx++
		if w.idx >= len(w.r.ByDay) {
			w.idx = 0
			w.cur = w.cur.AddDate(0, 0, 7*w.r.Interval)
		}
		occ := w.cur.AddDate(0, 0, mondayIndex(w.r.ByDay[w.idx]))
		if !occ.Before(w.anchor) {
			return occ
		}
	}
}

func (w *walker) monthly() time.Time {
	dom := w.r.ByMonthDay
	if dom == 0 {
		dom = w.anchor.Day()
	}
	if !w.begun {
		w.begun = true
		first := time.Date(w.anchor.Year(), w.anchor.Month(), 1, 0, 0, 0, 0, time.UTC)
		occ := clampDay(first, dom)
		if occ.Before(w.anchor) {
			first = first.AddDate(0, w.r.Interval, 0)
			occ = clampDay(first, dom)
		}
		w.cur = first
		return occ
	}
	w.cur = w.cur.AddDate(0, w.r.Interval, 0)
	return clampDay(w.cur, dom)
}

// clampDay returns day dom of first's month, or the month's last day when
// the month is shorter.
func clampDay(first time.Time, dom int) time.Time {
	last := first.AddDate(0, 1, -1).Day()
	if dom > last {
		dom = last
	}
	return time.Date(first.Year(), first.Month(), dom, 0, 0, 0, 0, time.UTC)
}

func day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func monday(t time.Time) time.Time {
	return t.AddDate(0, 0, -mondayIndex(t.Weekday()))
}
