package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/allowance/internal/notify"
)

type NotificationHandler struct {
	notify *notify.Service
	logger *slog.Logger
}

func NewNotificationHandler(ns *notify.Service, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{notify: ns, logger: logger}
}

// List accepts ?unread=true and ?limit=.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", notify.DefaultLimit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	ns, err := h.notify.List(r.Context(), authContext(r), queryBool(r, "unread"), limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(ns))
}

func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.notify.UnreadCount(r.Context(), authContext(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.notify.MarkRead(r.Context(), authContext(r), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.notify.MarkAllRead(r.Context(), authContext(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}
