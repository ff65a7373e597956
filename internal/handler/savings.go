package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/allowance/internal/auth"
	"github.com/dukerupert/allowance/internal/model"
	"github.com/dukerupert/allowance/internal/savings"
)

type SavingsHandler struct {
	savings *savings.Service
	logger  *slog.Logger
}

func NewSavingsHandler(ss *savings.Service, logger *slog.Logger) *SavingsHandler {
	return &SavingsHandler{savings: ss, logger: logger}
}

type goalRequest struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	TargetAmount decimal.Decimal `json:"target_amount"`
	ImageURL     string          `json:"image_url"`
}

func (req goalRequest) params() savings.GoalParams {
	return savings.GoalParams{
		Name:         req.Name,
		Description:  req.Description,
		TargetAmount: req.TargetAmount,
		ImageURL:     req.ImageURL,
	}
}

func (h *SavingsHandler) Create(w http.ResponseWriter, r *http.Request) {
	childID, err := parseID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req goalRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	goal, err := h.savings.CreateGoal(r.Context(), authContext(r), childID, req.params())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, goal)
}

func (h *SavingsHandler) List(w http.ResponseWriter, r *http.Request) {
	childID, err := parseID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	goals, err := h.savings.ListGoals(r.Context(), authContext(r), childID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(goals))
}

func (h *SavingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	goal, err := h.savings.GetGoal(r.Context(), authContext(r), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

func (h *SavingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req goalRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	goal, err := h.savings.UpdateGoal(r.Context(), authContext(r), id, req.params())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

type moneyRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Reason      string          `json:"reason"`
}

func (h *SavingsHandler) Contribute(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req moneyRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	res, err := h.savings.ContributeToGoal(r.Context(), authContext(r), id, req.Amount, req.Description)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *SavingsHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req moneyRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	goal, err := h.savings.WithdrawFromGoal(r.Context(), authContext(r), id, req.Amount, req.Reason)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

type goalTransition func(ctx context.Context, ac auth.AuthContext, id uuid.UUID) (*model.SavingsGoal, error)

// transition adapts a body-less goal state change to a handler.
func (h *SavingsHandler) transition(fn goalTransition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r, "id")
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		goal, err := fn(r.Context(), authContext(r), id)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, goal)
	}
}

func (h *SavingsHandler) Pause() http.HandlerFunc    { return h.transition(h.savings.PauseGoal) }
func (h *SavingsHandler) Resume() http.HandlerFunc   { return h.transition(h.savings.ResumeGoal) }
func (h *SavingsHandler) Cancel() http.HandlerFunc   { return h.transition(h.savings.CancelGoal) }
func (h *SavingsHandler) Purchase() http.HandlerFunc { return h.transition(h.savings.MarkPurchased) }

func (h *SavingsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	txns, err := h.savings.ListGoalTransactions(r.Context(), authContext(r), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(txns))
}

type matchingRequest struct {
	MatchType      model.MatchType `json:"match_type"`
	Value          decimal.Decimal `json:"value"`
	MaxMatchAmount decimal.Decimal `json:"max_match_amount"`
	ExpiresAt      *time.Time      `json:"expires_at"`
}

func (h *SavingsHandler) SetMatchingRule(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req matchingRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	rule, err := h.savings.SetMatchingRule(r.Context(), authContext(r), id, savings.MatchingParams{
		MatchType:      req.MatchType,
		Value:          req.Value,
		MaxMatchAmount: req.MaxMatchAmount,
		ExpiresAt:      req.ExpiresAt,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (h *SavingsHandler) RemoveMatchingRule(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.savings.RemoveMatchingRule(r.Context(), authContext(r), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type challengeRequest struct {
	TargetAmount decimal.Decimal `json:"target_amount"`
	EndDate      time.Time       `json:"end_date"`
	BonusAmount  decimal.Decimal `json:"bonus_amount"`
}

func (h *SavingsHandler) CreateChallenge(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req challengeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	ch, err := h.savings.CreateChallenge(r.Context(), authContext(r), id, savings.ChallengeParams{
		TargetAmount: req.TargetAmount,
		EndDate:      req.EndDate,
		BonusAmount:  req.BonusAmount,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, ch)
}

func (h *SavingsHandler) CancelChallenge(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.savings.CancelChallenge(r.Context(), authContext(r), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
