package handler

import (
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/allowance/internal/allowance"
)

type AllowanceHandler struct {
	allowance *allowance.Service
	logger    *slog.Logger
}

func NewAllowanceHandler(as *allowance.Service, logger *slog.Logger) *AllowanceHandler {
	return &AllowanceHandler{allowance: as, logger: logger}
}

type allowanceRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

func (h *AllowanceHandler) Pause(w http.ResponseWriter, r *http.Request) {
	childID, err := parseID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req allowanceRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	adj, err := h.allowance.PauseAllowance(r.Context(), authContext(r), childID, req.Reason)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, adj)
}

func (h *AllowanceHandler) Resume(w http.ResponseWriter, r *http.Request) {
	childID, err := parseID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req allowanceRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	adj, err := h.allowance.ResumeAllowance(r.Context(), authContext(r), childID, req.Reason)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, adj)
}

func (h *AllowanceHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	childID, err := parseID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req allowanceRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	adj, err := h.allowance.AdjustAllowanceAmount(r.Context(), authContext(r), childID, req.Amount, req.Reason)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, adj)
}

func (h *AllowanceHandler) ListAdjustments(w http.ResponseWriter, r *http.Request) {
	childID, err := parseID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	adjs, err := h.allowance.ListAdjustments(r.Context(), authContext(r), childID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(adjs))
}
