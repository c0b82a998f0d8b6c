package handlers

import (
	"net/http"

	"github.com/nevc-media/vidstream/catalog/internal/middleware"
	"github.com/nevc-media/vidstream/catalog/internal/models"
	"github.com/nevc-media/vidstream/catalog/internal/service"
	"github.com/nevc-media/vidstream/common/httputil"
)

type AuthHandler struct {
	service *service.AuthService
}

func NewAuthHandler(service *service.AuthService) *AuthHandler {
	return &AuthHandler{service: service}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	resp, err := h.service.Register(r.Context(), &req, middleware.OriginFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, resp)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	resp, err := h.service.Login(r.Context(), &req, middleware.OriginFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// Logout revokes the token in the body, falling back to the bearer token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req models.TokenRequest
	if r.ContentLength != 0 {
		if err := httputil.DecodeJSON(w, r, &req); err != nil {
			writeDecodeError(w, err)
			return
		}
	}
	if req.Token == "" {
		req.Token, _ = middleware.BearerToken(r)
	}
	if req.Token == "" {
		httputil.WriteErrorCode(w, http.StatusBadRequest, "invalid_body", "token is required")
		return
	}

	if err := h.service.Logout(r.Context(), req.Token); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) ValidateToken(w http.ResponseWriter, r *http.Request) {
	var req models.TokenRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.service.ValidateToken(r.Context(), req.Token))
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		writeServiceError(w, r, service.ErrUnauthenticated)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user.ToResponse())
}

func (h *AuthHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context(), middleware.UserFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := make([]*models.UserResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, u.ToResponse())
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateRoleRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	user, err := h.service.UpdateUserRole(r.Context(), middleware.UserFromContext(r.Context()), r.PathValue("id"), req.Role)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user.ToResponse())
}
