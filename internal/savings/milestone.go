package savings

import (
	"context"
	"time"

	"github.com/dukerupert/allowance/internal/model"
	"github.com/dukerupert/allowance/internal/store"
)

// MilestonePercents are the progress thresholds tracked for every goal.
var MilestonePercents = []int{25, 50, 75, 100}

// markMilestones stamps every unreached milestone at or below the goal's
// progress and returns the highest one newly reached, or 0.
func markMilestones(ctx context.Context, goals *store.GoalStore, g *model.SavingsGoal, now time.Time) (int, error) {
	milestones, err := goals.ListMilestones(ctx, g.ID)
	if err != nil {
		return 0, err
	}
	progress := g.ProgressPercent()
	highest := 0
	for i := range milestones {
		m := &milestones[i]
		if m.ReachedAt != nil || m.Percent > progress {
			continue
		}
		if err := goals.MarkMilestoneReached(ctx, m.ID, now); err != nil {
			return 0, err
		}
		reached := now
		m.ReachedAt = &reached
		if m.Percent > highest {
			highest = m.Percent
		}
	}
	g.Milestones = milestones
	return highest, nil
}
