package handler

import (
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/allowance/internal/wishlist"
)

type WishListHandler struct {
	wishlist *wishlist.Service
	logger   *slog.Logger
}

func NewWishListHandler(ws *wishlist.Service, logger *slog.Logger) *WishListHandler {
	return &WishListHandler{wishlist: ws, logger: logger}
}

type wishItemRequest struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	URL   string          `json:"url"`
	Notes string          `json:"notes"`
}

func (req wishItemRequest) params() wishlist.Params {
	return wishlist.Params{Name: req.Name, Price: req.Price, URL: req.URL, Notes: req.Notes}
}

func (h *WishListHandler) Create(w http.ResponseWriter, r *http.Request) {
	childID, err := parseID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req wishItemRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	item, err := h.wishlist.Create(r.Context(), authContext(r), childID, req.params())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *WishListHandler) List(w http.ResponseWriter, r *http.Request) {
	childID, err := parseID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	items, err := h.wishlist.List(r.Context(), authContext(r), childID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(items))
}

func (h *WishListHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req wishItemRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	item, err := h.wishlist.Update(r.Context(), authContext(r), id, req.params())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *WishListHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.wishlist.Delete(r.Context(), authContext(r), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *WishListHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	item, err := h.wishlist.MarkPurchased(r.Context(), authContext(r), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// Convert turns the item into a savings goal and returns the goal.
func (h *WishListHandler) Convert(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	goal, err := h.wishlist.ConvertToGoal(r.Context(), authContext(r), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, goal)
}
