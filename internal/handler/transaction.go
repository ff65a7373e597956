package handler

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/allowance/internal/ledger"
	"github.com/dukerupert/allowance/internal/model"
)

type TransactionHandler struct {
	ledger *ledger.Service
	logger *slog.Logger
}

func NewTransactionHandler(ls *ledger.Service, logger *slog.Logger) *TransactionHandler {
	return &TransactionHandler{ledger: ls, logger: logger}
}

type transactionRequest struct {
	ChildID     uuid.UUID             `json:"child_id"`
	Amount      decimal.Decimal       `json:"amount"`
	Type        model.TransactionType `json:"type"`
	Category    model.Category        `json:"category"`
	Description string                `json:"description"`
}

func (h *TransactionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	txn, err := h.ledger.CreateTransaction(r.Context(), authContext(r), ledger.CreateParams{
		ChildID:     req.ChildID,
		Amount:      req.Amount,
		Type:        req.Type,
		Category:    req.Category,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, txn)
}

func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	txn, err := h.ledger.GetTransaction(r.Context(), authContext(r), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, txn)
}

// ListByChild pages through a child's ledger, newest first.
func (h *TransactionHandler) ListByChild(w http.ResponseWriter, r *http.Request) {
	childID, err := parseID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	limit, err := queryInt(r, "limit", ledger.DefaultPageSize)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	txns, err := h.ledger.ListTransactions(r.Context(), authContext(r), childID, limit, offset)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(txns))
}
