package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/DeliveryGo/internal/authz"
	"github.com/utafrali/DeliveryGo/internal/service"
	"github.com/utafrali/DeliveryGo/pkg/httputil"
	"github.com/utafrali/DeliveryGo/pkg/pagination"
	"github.com/utafrali/DeliveryGo/pkg/validator"
)

// UserHandler handles HTTP requests for user endpoints.
type UserHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

// NewUserHandler creates a new user HTTP handler.
func NewUserHandler(users *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// --- Request DTOs ---

// RegisterRequest is the JSON request body for POST /users.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=1,max=72"`
	FullName string `json:"full_name" validate:"max=255"`
	Phone    string `json:"phone" validate:"max=32"`
}

// UpdateMeRequest is the JSON request body for PUT /users/me.
type UpdateMeRequest struct {
	Email    *string `json:"email" validate:"omitempty,email,max=255"`
	Password *string `json:"password" validate:"omitempty,min=1,max=72"`
	FullName *string `json:"full_name" validate:"omitempty,max=255"`
	Phone    *string `json:"phone" validate:"omitempty,max=32"`
}

// UpdateUserRequest is the JSON request body for PUT /users/{id}.
type UpdateUserRequest struct {
	Email       *string `json:"email" validate:"omitempty,email,max=255"`
	Password    *string `json:"password" validate:"omitempty,min=1,max=72"`
	FullName    *string `json:"full_name" validate:"omitempty,max=255"`
	Phone       *string `json:"phone" validate:"omitempty,max=32"`
	IsActive    *bool   `json:"is_active"`
	IsSuperuser *bool   `json:"is_superuser"`
}

// --- Handlers ---

// Register handles POST /api/v1/users
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	user, err := h.users.Register(r.Context(), service.CreateUserInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Phone:    req.Phone,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, user)
}

// GetMe handles GET /api/v1/users/me
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, http.StatusOK, actorFrom(r))
}

// UpdateMe handles PUT /api/v1/users/me
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req UpdateMeRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	user, err := h.users.UpdateUser(r.Context(), actorFrom(r).ID, service.UpdateUserInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Phone:    req.Phone,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, user)
}

// ListUsers handles GET /api/v1/users (admin only)
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	if err := authz.RequireAdmin(actorFrom(r)); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	params := pagination.FromRequest(r)
	users, total, err := h.users.ListUsers(r.Context(), params.Skip, params.Limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, pagination.NewResult(users, total, params))
}

// GetUser handles GET /api/v1/users/{id}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	if err := authz.CanAct(actorFrom(r), id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	user, err := h.users.GetUser(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, user)
}

// UpdateUser handles PUT /api/v1/users/{id} (admin only)
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	if err := authz.RequireAdmin(actorFrom(r)); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	var req UpdateUserRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	user, err := h.users.UpdateUser(r.Context(), id.String(), service.UpdateUserInput{
		Email:       req.Email,
		Password:    req.Password,
		FullName:    req.FullName,
		Phone:       req.Phone,
		IsActive:    req.IsActive,
		IsSuperuser: req.IsSuperuser,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, user)
}

// DeleteUser handles DELETE /api/v1/users/{id} (admin only)
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	if err := authz.RequireAdmin(actorFrom(r)); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	user, err := h.users.DeleteUser(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, user)
}
