package task

import (
	"fmt"
	"time"

	"github.com/dukerupert/allowance/internal/model"
	"github.com/dukerupert/allowance/internal/recurrence"
)

// TaskWithStatus decorates a task with whether it can be completed now.
type TaskWithStatus struct {
	model.ChoreTask
	Schedule    string     `json:"schedule,omitempty"`
	CanComplete bool       `json:"can_complete"`
	Reason      string     `json:"reason,omitempty"`
	PeriodStart *time.Time `json:"period_start,omitempty"`
	NextDue     *time.Time `json:"next_due,omitempty"`
}

// ComputeStatus decides whether a new completion is accepted for task at
// now. One-time tasks accept one unless an earlier completion is pending or
// approved. Recurring tasks accept one non-rejected completion per
// occurrence period.
func ComputeStatus(t model.ChoreTask, completions []model.TaskCompletion, now time.Time) (TaskWithStatus, error) {
	ts := TaskWithStatus{ChoreTask: t}
	if t.Status != model.TaskActive {
		ts.Reason = "task is archived"
		return ts, nil
	}

	if t.Recurrence == "" {
		for _, c := range completions {
			if c.Status != model.CompletionRejected {
				ts.Reason = fmt.Sprintf("already %s", describe(c.Status))
				return ts, nil
			}
		}
		ts.CanComplete = true
		return ts, nil
	}

	rule, err := recurrence.Parse(t.Recurrence)
	if err != nil {
		return ts, fmt.Errorf("parse recurrence for task %s: %w", t.ID, err)
	}
	ts.Schedule = rule.Describe()

	start, end, ok := recurrence.Period(rule, t.CreatedAt, now)
	if !ok {
		if next, found := recurrence.Next(rule, t.CreatedAt, now); found {
			ts.NextDue = &next
		}
		ts.Reason = "not due yet"
		return ts, nil
	}
	ts.PeriodStart = &start
	if !end.IsZero() {
		ts.NextDue = &end
	}

	for _, c := range completions {
		if c.Status == model.CompletionRejected {
			continue
		}
		done := c.CompletedAt.UTC()
		if done.Before(start) || (!end.IsZero() && !done.Before(end)) {
			continue
		}
		ts.Reason = fmt.Sprintf("already %s for this period", describe(c.Status))
		return ts, nil
	}
	ts.CanComplete = true
	return ts, nil
}

func describe(s model.CompletionStatus) string {
	if s == model.CompletionApproved {
		return "approved"
	}
	return "submitted"
}
