package handler

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/allowance/internal/apperr"
	"github.com/dukerupert/allowance/internal/task"
)

type TaskHandler struct {
	tasks  *task.Service
	logger *slog.Logger
}

func NewTaskHandler(ts *task.Service, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{tasks: ts, logger: logger}
}

type taskRequest struct {
	ChildID     uuid.UUID       `json:"child_id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Reward      decimal.Decimal `json:"reward"`
	Recurrence  string          `json:"recurrence"`
}

func (req taskRequest) params() task.Params {
	return task.Params{
		ChildID:     req.ChildID,
		Title:       req.Title,
		Description: req.Description,
		Reward:      req.Reward,
		Recurrence:  req.Recurrence,
	}
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	t, err := h.tasks.CreateTask(r.Context(), authContext(r), req.params())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// List accepts ?child_id= to narrow to one child and ?include_archived=true.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	var childID *uuid.UUID
	if s := r.URL.Query().Get("child_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			writeError(w, h.logger, apperr.Invalid("child_id", "is not a valid id"))
			return
		}
		childID = &id
	}
	tasks, err := h.tasks.ListTasks(r.Context(), authContext(r), childID, queryBool(r, "include_archived"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(tasks))
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	t, err := h.tasks.GetTask(r.Context(), authContext(r), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req taskRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	t, err := h.tasks.UpdateTask(r.Context(), authContext(r), id, req.params())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// Archive backs DELETE; tasks keep their completion history.
func (h *TaskHandler) Archive(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.tasks.ArchiveTask(r.Context(), authContext(r), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type completeRequest struct {
	Notes    string `json:"notes"`
	PhotoURL string `json:"photo_url"`
}

func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req completeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	c, err := h.tasks.Complete(r.Context(), authContext(r), id, req.Notes, req.PhotoURL)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *TaskHandler) ListCompletions(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	cs, err := h.tasks.ListCompletions(r.Context(), authContext(r), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(cs))
}

func (h *TaskHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	cs, err := h.tasks.ListPending(r.Context(), authContext(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(cs))
}

func (h *TaskHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	c, err := h.tasks.Approve(r.Context(), authContext(r), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *TaskHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req rejectRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	c, err := h.tasks.Reject(r.Context(), authContext(r), id, req.Reason)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
