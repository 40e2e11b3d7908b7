package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/memo-service/internal/middleware"
	"github.com/Dan9191/memo-service/internal/repository"
	"github.com/Dan9191/memo-service/internal/service"
)

type Handler struct {
	svc *service.Service
	log *logrus.Logger
}

func NewHandler(svc *service.Service, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type memoRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Register handles user registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		h.writeMessage(w, http.StatusBadRequest, "username and password are required")
		return
	}

	user, err := h.svc.Register(r.Context(), req.Username, req.Password)
	if errors.Is(err, repository.ErrDuplicateUsername) {
		h.writeMessage(w, http.StatusConflict, "username already exists")
		return
	}
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":       user.ID,
		"username": user.Username,
	})
}

// Login handles user authentication
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		h.writeMessage(w, http.StatusBadRequest, "username and password are required")
		return
	}

	token, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, service.ErrAuthenticationFailed) {
		h.writeMessage(w, http.StatusUnauthorized, "login failed")
		return
	}
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// CreateMemo handles memo creation for the authenticated user
func (h *Handler) CreateMemo(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.CurrentUserID(r.Context())
	if !ok {
		h.writeMessage(w, http.StatusUnauthorized, "invalid or missing token")
		return
	}

	var req memoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" || req.Content == "" {
		h.writeMessage(w, http.StatusBadRequest, "title and content are required")
		return
	}

	memo, err := h.svc.CreateMemo(r.Context(), ownerID, req.Title, req.Content)
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, memo)
}

// GetMemo handles retrieval of one of the authenticated user's memos
func (h *Handler) GetMemo(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.CurrentUserID(r.Context())
	if !ok {
		h.writeMessage(w, http.StatusUnauthorized, "invalid or missing token")
		return
	}

	id, err := memoID(r)
	if err != nil {
		h.writeMessage(w, http.StatusNotFound, "memo not found")
		return
	}

	memo, err := h.svc.GetMemo(r.Context(), ownerID, id)
	if errors.Is(err, repository.ErrMemoNotFound) {
		h.writeMessage(w, http.StatusNotFound, "memo not found")
		return
	}
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, memo)
}

// UpdateMemo handles updates to one of the authenticated user's memos
func (h *Handler) UpdateMemo(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.CurrentUserID(r.Context())
	if !ok {
		h.writeMessage(w, http.StatusUnauthorized, "invalid or missing token")
		return
	}

	id, err := memoID(r)
	if err != nil {
		h.writeMessage(w, http.StatusNotFound, "memo not found")
		return
	}

	var req memoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" || req.Content == "" {
		h.writeMessage(w, http.StatusBadRequest, "title and content are required")
		return
	}

	memo, err := h.svc.UpdateMemo(r.Context(), ownerID, id, req.Title, req.Content)
	if errors.Is(err, repository.ErrMemoNotFound) {
		h.writeMessage(w, http.StatusNotFound, "memo not found")
		return
	}
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, memo)
}

// DeleteMemo handles deletion of one of the authenticated user's memos
func (h *Handler) DeleteMemo(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := middleware.CurrentUserID(r.Context())
	if !ok {
		h.writeMessage(w, http.StatusUnauthorized, "invalid or missing token")
		return
	}

	id, err := memoID(r)
	if err != nil {
		h.writeMessage(w, http.StatusNotFound, "memo not found")
		return
	}

	err = h.svc.DeleteMemo(r.Context(), ownerID, id)
	if errors.Is(err, repository.ErrMemoNotFound) {
		h.writeMessage(w, http.StatusNotFound, "memo not found")
		return
	}
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func memoID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.WithError(err).Error("Failed to encode response")
	}
}

func (h *Handler) writeMessage(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"message": message})
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	h.log.WithFields(logrus.Fields{
		"path":   r.URL.Path,
		"method": r.Method,
	}).WithError(err).Error("Request failed")
	h.writeMessage(w, http.StatusInternalServerError, "internal server error")
}
