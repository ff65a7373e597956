package handler

import (
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/allowance/internal/budget"
	"github.com/dukerupert/allowance/internal/model"
)

type BudgetHandler struct {
	budgets *budget.Service
	logger  *slog.Logger
}

func NewBudgetHandler(bs *budget.Service, logger *slog.Logger) *BudgetHandler {
	return &BudgetHandler{budgets: bs, logger: logger}
}

type budgetRequest struct {
	Category model.Category     `json:"category"`
	Limit    decimal.Decimal    `json:"limit_amount"`
	Period   model.BudgetPeriod `json:"period"`
	Enforce  bool               `json:"enforce"`
}

// Set creates or replaces the budget for the request's category.
func (h *BudgetHandler) Set(w http.ResponseWriter, r *http.Request) {
	childID, err := parseID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req budgetRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	b, err := h.budgets.SetBudget(r.Context(), authContext(r), childID, budget.SetParams{
		Category: req.Category,
		Limit:    req.Limit,
		Period:   req.Period,
		Enforce:  req.Enforce,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *BudgetHandler) List(w http.ResponseWriter, r *http.Request) {
	childID, err := parseID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	bs, err := h.budgets.ListBudgets(r.Context(), authContext(r), childID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(bs))
}

func (h *BudgetHandler) Status(w http.ResponseWriter, r *http.Request) {
	childID, err := parseID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	st, err := h.budgets.Status(r.Context(), authContext(r), childID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(st))
}

func (h *BudgetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.budgets.DeleteBudget(r.Context(), authContext(r), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
