package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/allowance/internal/family"
)

type AuthHandler struct {
	family *family.Service
	logger *slog.Logger
}

func NewAuthHandler(fs *family.Service, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{family: fs, logger: logger}
}

type registerRequest struct {
	FamilyName string `json:"family_name"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	sess, err := h.family.Register(r.Context(), req.FamilyName, req.Name, req.Email, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	sess, err := h.family.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}
