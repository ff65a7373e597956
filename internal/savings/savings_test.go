package savings

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/allowance/internal/apperr"
	"github.com/dukerupert/allowance/internal/ledger"
	"github.com/dukerupert/allowance/internal/model"
	"github.com/dukerupert/allowance/internal/testutil"
)

type env struct {
	svc *Service
	db  *sql.DB
	fam testutil.Family
	n   *testutil.Notifier
}

func setup(t *testing.T) env {
	t.Helper()
	db := testutil.DB(t)
	fam := testutil.SeedFamily(t, db)
	n := &testutil.Notifier{}
	l := ledger.NewService(db, n, testutil.Logger())
	return env{svc: NewService(db, l, n, testutil.Logger()), db: db, fam: fam, n: n}
}

func (e env) goal(t *testing.T, target string) *model.SavingsGoal {
	t.Helper()
	g, err := e.svc.CreateGoal(context.Background(), e.fam.ChildAuth, e.fam.Child.ID, GoalParams{
		Name:         "Bike",
		TargetAmount: testutil.Dec(target),
	})
	require.NoError(t, err)
	return g
}

func (e env) contribute(t *testing.T, g *model.SavingsGoal, amount string) *ContributionResult {
	t.Helper()
	res, err := e.svc.ContributeToGoal(context.Background(), e.fam.ChildAuth, g.ID, testutil.Dec(amount), "")
	require.NoError(t, err)
	return res
}

func TestContributeCapsAtTarget(t *testing.T) {
	e := setup(t)
	testutil.SetBalance(t, e.db, e.fam.Child.ID, "130")
	g := e.goal(t, "100")
	e.contribute(t, g, "80")

	res := e.contribute(t, g, "30")

	assert.True(t, testutil.Balance(t, e.db, e.fam.Child.ID).Equal(testutil.Dec("20")))
	assert.True(t, res.Goal.CurrentAmount.Equal(testutil.Dec("100")))
	assert.True(t, res.Goal.Surplus.Equal(testutil.Dec("10")))
	assert.Equal(t, model.GoalCompleted, res.Goal.Status)
	assert.NotNil(t, res.Goal.CompletedAt)
	assert.True(t, res.Completed)
	assert.Equal(t, model.CategorySavings, res.Transaction.Category)
	assert.True(t, res.Transaction.BalanceAfter.Equal(testutil.Dec("20")))
}

func TestContributeInsufficientFunds(t *testing.T) {
	e := setup(t)
	testutil.SetBalance(t, e.db, e.fam.Child.ID, "10")
	g := e.goal(t, "100")

	_, err := e.svc.ContributeToGoal(context.Background(), e.fam.ChildAuth, g.ID, testutil.Dec("11"), "")
	assert.ErrorIs(t, err, apperr.ErrInsufficientFunds)

	got, err := e.svc.GetGoal(context.Background(), e.fam.ChildAuth, g.ID)
	require.NoError(t, err)
	assert.True(t, got.CurrentAmount.IsZero())
	assert.True(t, testutil.Balance(t, e.db, e.fam.Child.ID).Equal(testutil.Dec("10")))
}

func TestContributeRequiresActiveGoal(t *testing.T) {
	e := setup(t)
	testutil.SetBalance(t, e.db, e.fam.Child.ID, "50")
	g := e.goal(t, "100")
	_, err := e.svc.PauseGoal(context.Background(), e.fam.ChildAuth, g.ID)
	require.NoError(t, err)

	_, err = e.svc.ContributeToGoal(context.Background(), e.fam.ChildAuth, g.ID, testutil.Dec("5"), "")
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	_, err = e.svc.ResumeGoal(context.Background(), e.fam.ChildAuth, g.ID)
	require.NoError(t, err)
	e.contribute(t, g, "5")
}

func TestMilestoneSignalsHighestOnly(t *testing.T) {
	e := setup(t)
	testutil.SetBalance(t, e.db, e.fam.Child.ID, "100")
	g := e.goal(t, "100")

	res := e.contribute(t, g, "60")
	assert.Equal(t, 50, res.Milestone)
	assert.Equal(t, []model.NotifType{model.NotifMilestoneReached}, e.n.Types())

	reached := 0
	for _, m := range res.Goal.Milestones {
		if m.ReachedAt != nil {
			reached++
		}
	}
	assert.Equal(t, 2, reached)

	res = e.contribute(t, g, "5")
	assert.Zero(t, res.Milestone)
	assert.Len(t, e.n.Types(), 1)
}

func TestMatchingRuleRatioWithCap(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	testutil.SetBalance(t, e.db, e.fam.Child.ID, "100")
	g := e.goal(t, "100")

	_, err := e.svc.SetMatchingRule(ctx, e.fam.ParentAuth, g.ID, MatchingParams{
		MatchType:      model.MatchRatio,
		Value:          testutil.Dec("0.5"),
		MaxMatchAmount: testutil.Dec("6"),
	})
	require.NoError(t, err)

	res := e.contribute(t, g, "10")
	assert.True(t, res.Matched.Equal(testutil.Dec("5")))
	assert.True(t, res.Goal.CurrentAmount.Equal(testutil.Dec("15")))

	res = e.contribute(t, g, "10")
	assert.True(t, res.Matched.Equal(testutil.Dec("1")), "capped at remaining 1, got %s", res.Matched)

	res = e.contribute(t, g, "10")
	assert.True(t, res.Matched.IsZero(), "rule exhausted")
	assert.True(t, res.Goal.CurrentAmount.Equal(testutil.Dec("36")))

	got, err := e.svc.GetGoal(ctx, e.fam.ParentAuth, g.ID)
	require.NoError(t, err)
	require.NotNil(t, got.MatchingRule)
	assert.False(t, got.MatchingRule.Active)
	assert.True(t, got.MatchingRule.TotalMatched.Equal(testutil.Dec("6")))
	assert.True(t, testutil.Balance(t, e.db, e.fam.Child.ID).Equal(testutil.Dec("70")), "match never debits the child")
}

func TestMatchingRuleLimitedByRemaining(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	testutil.SetBalance(t, e.db, e.fam.Child.ID, "100")
	g := e.goal(t, "20")

	_, err := e.svc.SetMatchingRule(ctx, e.fam.ParentAuth, g.ID, MatchingParams{
		MatchType: model.MatchFixed,
		Value:     testutil.Dec("10"),
	})
	require.NoError(t, err)

	res := e.contribute(t, g, "15")
	assert.True(t, res.Matched.Equal(testutil.Dec("5")))
	assert.True(t, res.Goal.CurrentAmount.Equal(testutil.Dec("20")))
	assert.Equal(t, model.GoalCompleted, res.Goal.Status)
}

func TestMatchingRuleParentOnly(t *testing.T) {
	e := setup(t)
	g := e.goal(t, "20")

	_, err := e.svc.SetMatchingRule(context.Background(), e.fam.ChildAuth, g.ID, MatchingParams{
		MatchType: model.MatchFixed,
		Value:     testutil.Dec("1"),
	})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestChallengeCompletesWithBonus(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	testutil.SetBalance(t, e.db, e.fam.Child.ID, "100")
	g := e.goal(t, "100")

	_, err := e.svc.CreateChallenge(ctx, e.fam.ParentAuth, g.ID, ChallengeParams{
		TargetAmount: testutil.Dec("50"),
		EndDate:      time.Now().Add(48 * time.Hour),
		BonusAmount:  testutil.Dec("5"),
	})
	require.NoError(t, err)

	res := e.contribute(t, g, "50")
	require.NotNil(t, res.Challenge)
	assert.Equal(t, model.ChallengeCompleted, res.Challenge.Status)
	require.NotNil(t, res.Bonus)
	assert.Equal(t, model.CategoryBonusReward, res.Bonus.Category)
	assert.True(t, testutil.Balance(t, e.db, e.fam.Child.ID).Equal(testutil.Dec("55")))
	assert.Contains(t, e.n.Types(), model.NotifChallengeCompleted)
}

func TestChallengeFailsAfterDeadline(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	testutil.SetBalance(t, e.db, e.fam.Child.ID, "100")
	g := e.goal(t, "100")

	_, err := e.svc.CreateChallenge(ctx, e.fam.ParentAuth, g.ID, ChallengeParams{
		TargetAmount: testutil.Dec("50"),
		EndDate:      time.Now().Add(time.Hour),
		BonusAmount:  testutil.Dec("5"),
	})
	require.NoError(t, err)

	e.svc.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }
	res := e.contribute(t, g, "60")
	require.NotNil(t, res.Challenge)
	assert.Equal(t, model.ChallengeFailed, res.Challenge.Status)
	assert.Nil(t, res.Bonus)
	assert.True(t, testutil.Balance(t, e.db, e.fam.Child.ID).Equal(testutil.Dec("40")))
}

func TestGoalCompletionCompletesChallenge(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	testutil.SetBalance(t, e.db, e.fam.Child.ID, "100")
	g := e.goal(t, "40")
	_, err := e.svc.SetMatchingRule(ctx, e.fam.ParentAuth, g.ID, MatchingParams{MatchType: model.MatchFixed, Value: testutil.Dec("10")})
	require.NoError(t, err)
	_, err = e.svc.CreateChallenge(ctx, e.fam.ParentAuth, g.ID, ChallengeParams{
		TargetAmount: testutil.Dec("40"),
		EndDate:      time.Now().Add(time.Hour),
		BonusAmount:  testutil.Dec("5"),
	})
	require.NoError(t, err)

	res := e.contribute(t, g, "20")
	assert.Nil(t, res.Challenge, "30 of 40 leaves the challenge active")

	res = e.contribute(t, g, "10")
	assert.Equal(t, model.GoalCompleted, res.Goal.Status)
	require.NotNil(t, res.Challenge)
	assert.Equal(t, model.ChallengeCompleted, res.Challenge.Status)
}

func TestLoweredTargetCancelsUnreachableChallenge(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	testutil.SetBalance(t, e.db, e.fam.Child.ID, "100")
	g := e.goal(t, "100")
	_, err := e.svc.CreateChallenge(ctx, e.fam.ParentAuth, g.ID, ChallengeParams{
		TargetAmount: testutil.Dec("80"),
		EndDate:      time.Now().Add(time.Hour),
		BonusAmount:  testutil.Dec("5"),
	})
	require.NoError(t, err)
	e.contribute(t, g, "50")

	got, err := e.svc.UpdateGoal(ctx, e.fam.ParentAuth, g.ID, GoalParams{Name: "Bike", TargetAmount: testutil.Dec("40")})
	require.NoError(t, err)
	assert.Equal(t, model.GoalCompleted, got.Status)
	assert.True(t, got.Surplus.Equal(testutil.Dec("10")))

	got, err = e.svc.GetGoal(ctx, e.fam.ParentAuth, g.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Challenge)
}

func TestLoweredTargetCancelsChallengeOnActiveGoal(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	testutil.SetBalance(t, e.db, e.fam.Child.ID, "100")
	g := e.goal(t, "100")
	_, err := e.svc.CreateChallenge(ctx, e.fam.ParentAuth, g.ID, ChallengeParams{
		TargetAmount: testutil.Dec("80"),
		EndDate:      time.Now().Add(time.Hour),
		BonusAmount:  testutil.Dec("5"),
	})
	require.NoError(t, err)
	e.contribute(t, g, "10")

	got, err := e.svc.UpdateGoal(ctx, e.fam.ParentAuth, g.ID, GoalParams{Name: "Bike", TargetAmount: testutil.Dec("60")})
	require.NoError(t, err)
	assert.Equal(t, model.GoalActive, got.Status)

	got, err = e.svc.GetGoal(ctx, e.fam.ParentAuth, g.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Challenge, "challenge above the goal target can never be met")

	_, err = e.svc.CreateChallenge(ctx, e.fam.ParentAuth, g.ID, ChallengeParams{
		TargetAmount: testutil.Dec("50"),
		EndDate:      time.Now().Add(time.Hour),
		BonusAmount:  testutil.Dec("5"),
	})
	require.NoError(t, err)
}

func TestLoweredTargetKeepsReachableChallenge(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	testutil.SetBalance(t, e.db, e.fam.Child.ID, "100")
	g := e.goal(t, "100")
	_, err := e.svc.CreateChallenge(ctx, e.fam.ParentAuth, g.ID, ChallengeParams{
		TargetAmount: testutil.Dec("50"),
		EndDate:      time.Now().Add(time.Hour),
		BonusAmount:  testutil.Dec("5"),
	})
	require.NoError(t, err)

	_, err = e.svc.UpdateGoal(ctx, e.fam.ParentAuth, g.ID, GoalParams{Name: "Bike", TargetAmount: testutil.Dec("60")})
	require.NoError(t, err)

	got, err := e.svc.GetGoal(ctx, e.fam.ParentAuth, g.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Challenge)
	assert.Equal(t, model.ChallengeActive, got.Challenge.Status)
}

func TestChallengeTargetMustExceedCurrent(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	testutil.SetBalance(t, e.db, e.fam.Child.ID, "100")
	g := e.goal(t, "100")
	e.contribute(t, g, "30")

	for _, target := range []string{"20", "30"} {
		_, err := e.svc.CreateChallenge(ctx, e.fam.ParentAuth, g.ID, ChallengeParams{
			TargetAmount: testutil.Dec(target),
			EndDate:      time.Now().Add(time.Hour),
			BonusAmount:  testutil.Dec("5"),
		})
		assert.ErrorIs(t, err, apperr.ErrInvalid, "target %s", target)
	}

	_, err := e.svc.CreateChallenge(ctx, e.fam.ParentAuth, g.ID, ChallengeParams{
		TargetAmount: testutil.Dec("30.01"),
		EndDate:      time.Now().Add(time.Hour),
		BonusAmount:  testutil.Dec("5"),
	})
	require.NoError(t, err)
}

func TestWithdrawParentOnly(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	testutil.SetBalance(t, e.db, e.fam.Child.ID, "100")
	g := e.goal(t, "50")
	e.contribute(t, g, "50")

	_, err := e.svc.WithdrawFromGoal(ctx, e.fam.ChildAuth, g.ID, testutil.Dec("10"), "")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = e.svc.WithdrawFromGoal(ctx, e.fam.ParentAuth, g.ID, testutil.Dec("51"), "")
	assert.ErrorIs(t, err, apperr.ErrInsufficientFunds)

	got, err := e.svc.WithdrawFromGoal(ctx, e.fam.ParentAuth, g.ID, testutil.Dec("10"), "shoes")
	require.NoError(t, err)
	assert.Equal(t, model.GoalActive, got.Status, "completed goal drops back to active")
	assert.Nil(t, got.CompletedAt)
	assert.True(t, got.CurrentAmount.Equal(testutil.Dec("40")))
	assert.True(t, testutil.Balance(t, e.db, e.fam.Child.ID).Equal(testutil.Dec("60")))

	txns, err := e.svc.ListGoalTransactions(ctx, e.fam.ParentAuth, g.ID)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, model.GoalWithdrawal, txns[1].Type)
}

func TestCancelRefundsCurrentAndSurplus(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	testutil.SetBalance(t, e.db, e.fam.Child.ID, "100")
	g := e.goal(t, "50")
	e.contribute(t, g, "60")
	assert.True(t, testutil.Balance(t, e.db, e.fam.Child.ID).Equal(testutil.Dec("40")))

	got, err := e.svc.CancelGoal(ctx, e.fam.ParentAuth, g.ID)
	require.NoError(t, err)
	assert.Equal(t, model.GoalCancelled, got.Status)
	assert.True(t, got.CurrentAmount.IsZero())
	assert.True(t, got.Surplus.IsZero())
	assert.True(t, testutil.Balance(t, e.db, e.fam.Child.ID).Equal(testutil.Dec("100")))

	_, err = e.svc.CancelGoal(ctx, e.fam.ParentAuth, g.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestChildCannotReleaseGoalMoney(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	testutil.SetBalance(t, e.db, e.fam.Child.ID, "50")
	g := e.goal(t, "100")
	_, err := e.svc.SetMatchingRule(ctx, e.fam.ParentAuth, g.ID, MatchingParams{MatchType: model.MatchRatio, Value: testutil.Dec("1")})
	require.NoError(t, err)
	e.contribute(t, g, "40")
	require.True(t, testutil.Balance(t, e.db, e.fam.Child.ID).Equal(testutil.Dec("10")))

	_, err = e.svc.CancelGoal(ctx, e.fam.ChildAuth, g.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = e.svc.UpdateGoal(ctx, e.fam.ChildAuth, g.ID, GoalParams{Name: "Bike", TargetAmount: testutil.Dec("1")})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = e.svc.MarkPurchased(ctx, e.fam.ChildAuth, g.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	assert.True(t, testutil.Balance(t, e.db, e.fam.Child.ID).Equal(testutil.Dec("10")))
	got, err := e.svc.GetGoal(ctx, e.fam.ChildAuth, g.ID)
	require.NoError(t, err)
	assert.Equal(t, model.GoalActive, got.Status)
	assert.True(t, got.CurrentAmount.Equal(testutil.Dec("80")))
	assert.True(t, got.TargetAmount.Equal(testutil.Dec("100")))
}

func TestChildCanRenameGoal(t *testing.T) {
	e := setup(t)
	g := e.goal(t, "100")

	got, err := e.svc.UpdateGoal(context.Background(), e.fam.ChildAuth, g.ID, GoalParams{Name: "Red bike", TargetAmount: testutil.Dec("100")})
	require.NoError(t, err)
	assert.Equal(t, "Red bike", got.Name)
}

func TestMarkPurchasedRefundsSurplus(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	testutil.SetBalance(t, e.db, e.fam.Child.ID, "100")
	g := e.goal(t, "50")

	_, err := e.svc.MarkPurchased(ctx, e.fam.ParentAuth, g.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	e.contribute(t, g, "55")
	got, err := e.svc.MarkPurchased(ctx, e.fam.ParentAuth, g.ID)
	require.NoError(t, err)
	assert.Equal(t, model.GoalPurchased, got.Status)
	assert.True(t, got.CurrentAmount.Equal(testutil.Dec("50")))
	assert.True(t, testutil.Balance(t, e.db, e.fam.Child.ID).Equal(testutil.Dec("50")))
}

func TestUpdateGoalRebalancesTarget(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	testutil.SetBalance(t, e.db, e.fam.Child.ID, "100")
	g := e.goal(t, "50")
	e.contribute(t, g, "60")

	got, err := e.svc.UpdateGoal(ctx, e.fam.ParentAuth, g.ID, GoalParams{Name: "Better bike", TargetAmount: testutil.Dec("80")})
	require.NoError(t, err)
	assert.Equal(t, model.GoalActive, got.Status)
	assert.True(t, got.CurrentAmount.Equal(testutil.Dec("60")))
	assert.True(t, got.Surplus.IsZero())

	got, err = e.svc.UpdateGoal(ctx, e.fam.ParentAuth, g.ID, GoalParams{Name: "Cheap bike", TargetAmount: testutil.Dec("40")})
	require.NoError(t, err)
	assert.Equal(t, model.GoalCompleted, got.Status)
	assert.True(t, got.CurrentAmount.Equal(testutil.Dec("40")))
	assert.True(t, got.Surplus.Equal(testutil.Dec("20")))
}

func TestCreateGoalValidation(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	_, err := e.svc.CreateGoal(ctx, e.fam.ChildAuth, e.fam.Child.ID, GoalParams{Name: " ", TargetAmount: decimal.NewFromInt(5)})
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	_, err = e.svc.CreateGoal(ctx, e.fam.ChildAuth, e.fam.Child.ID, GoalParams{Name: "x", TargetAmount: decimal.Zero})
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}
