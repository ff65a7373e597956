package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/allowance/internal/analytics"
	"github.com/dukerupert/allowance/internal/family"
)

type ChildHandler struct {
	family    *family.Service
	analytics *analytics.Service
	logger    *slog.Logger
}

func NewChildHandler(fs *family.Service, as *analytics.Service, logger *slog.Logger) *ChildHandler {
	return &ChildHandler{family: fs, analytics: as, logger: logger}
}

type childRequest struct {
	Name            string          `json:"name"`
	Email           string          `json:"email"`
	Password        string          `json:"password"`
	WeeklyAllowance decimal.Decimal `json:"weekly_allowance"`
	AllowanceDay    time.Weekday    `json:"allowance_day"`
	AllowDebt       bool            `json:"allow_debt"`
}

func (h *ChildHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req childRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	child, err := h.family.AddChild(r.Context(), authContext(r), family.ChildParams{
		Name:            req.Name,
		Email:           req.Email,
		Password:        req.Password,
		WeeklyAllowance: req.WeeklyAllowance,
		AllowanceDay:    req.AllowanceDay,
		AllowDebt:       req.AllowDebt,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, child)
}

func (h *ChildHandler) List(w http.ResponseWriter, r *http.Request) {
	children, err := h.family.ListChildren(r.Context(), authContext(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(children))
}

func (h *ChildHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	child, err := h.family.GetChild(r.Context(), authContext(r), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, child)
}

// settingsRequest uses pointers so omitted fields are left unchanged.
type settingsRequest struct {
	AllowDebt    *bool         `json:"allow_debt"`
	AllowanceDay *time.Weekday `json:"allowance_day"`
}

func (h *ChildHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req settingsRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	child, err := h.family.UpdateChildSettings(r.Context(), authContext(r), id, family.SettingsParams{
		AllowDebt:    req.AllowDebt,
		AllowanceDay: req.AllowanceDay,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, child)
}

func (h *ChildHandler) Summary(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	summary, err := h.analytics.Summary(r.Context(), authContext(r), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
