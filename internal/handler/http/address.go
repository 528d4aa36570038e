package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/DeliveryGo/internal/authz"
	"github.com/utafrali/DeliveryGo/internal/domain"
	"github.com/utafrali/DeliveryGo/internal/service"
	"github.com/utafrali/DeliveryGo/pkg/httputil"
	"github.com/utafrali/DeliveryGo/pkg/pagination"
	"github.com/utafrali/DeliveryGo/pkg/validator"
)

// AddressHandler handles HTTP requests for address endpoints.
type AddressHandler struct {
	addresses *service.AddressService
	logger    *slog.Logger
}

// NewAddressHandler creates a new address HTTP handler.
func NewAddressHandler(addresses *service.AddressService, logger *slog.Logger) *AddressHandler {
	return &AddressHandler{addresses: addresses, logger: logger}
}

// --- Request DTOs ---

// CreateAddressRequest is the JSON request body for creating an address.
// UserID defaults to the caller; only admins may name another user.
type CreateAddressRequest struct {
	UserID     string `json:"user_id" validate:"omitempty,uuid"`
	Street     string `json:"street" validate:"required,max=255"`
	City       string `json:"city" validate:"required,max=100"`
	State      string `json:"state" validate:"max=100"`
	PostalCode string `json:"postal_code" validate:"required,max=20"`
	Country    string `json:"country" validate:"max=100"`
	Apartment  string `json:"apartment" validate:"max=20"`
	Floor      string `json:"floor" validate:"max=10"`
	Entrance   string `json:"entrance" validate:"max=10"`
	Notes      string `json:"notes" validate:"max=500"`
	IsDefault  bool   `json:"is_default"`
}

// UpdateAddressRequest is the JSON request body for updating an address.
type UpdateAddressRequest struct {
	Street     *string `json:"street" validate:"omitempty,max=255"`
	City       *string `json:"city" validate:"omitempty,max=100"`
	State      *string `json:"state" validate:"omitempty,max=100"`
	PostalCode *string `json:"postal_code" validate:"omitempty,max=20"`
	Country    *string `json:"country" validate:"omitempty,max=100"`
	Apartment  *string `json:"apartment" validate:"omitempty,max=20"`
	Floor      *string `json:"floor" validate:"omitempty,max=10"`
	Entrance   *string `json:"entrance" validate:"omitempty,max=10"`
	Notes      *string `json:"notes" validate:"omitempty,max=500"`
	IsDefault  *bool   `json:"is_default"`
}

// --- Handlers ---

// ListAddresses handles GET /api/v1/addresses. Regular users see their own
// addresses; admins see everyone's or filter with user_id.
func (h *AddressHandler) ListAddresses(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	params := pagination.FromRequest(r)

	userID := authz.ScopeUserID(actor)
	if userID == "" {
		var ok bool
		if userID, ok = httputil.ParseOptionalUUID(w, r.URL.Query().Get("user_id")); !ok {
			return
		}
	}

	addresses, total, err := h.addresses.ListAddresses(r.Context(), userID, params.Skip, params.Limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, pagination.NewResult(addresses, total, params))
}

// CreateAddress handles POST /api/v1/addresses
func (h *AddressHandler) CreateAddress(w http.ResponseWriter, r *http.Request) {
	var req CreateAddressRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	actor := actorFrom(r)
	userID := actor.ID
	if req.UserID != "" {
		if err := authz.CanAct(actor, req.UserID); err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
		userID = req.UserID
	}

	address, err := h.addresses.CreateAddress(r.Context(), service.CreateAddressInput{
		UserID:     userID,
		Street:     req.Street,
		City:       req.City,
		State:      req.State,
		PostalCode: req.PostalCode,
		Country:    req.Country,
		Apartment:  req.Apartment,
		Floor:      req.Floor,
		Entrance:   req.Entrance,
		Notes:      req.Notes,
		IsDefault:  req.IsDefault,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, address)
}

// GetDefaultAddress handles GET /api/v1/addresses/default
func (h *AddressHandler) GetDefaultAddress(w http.ResponseWriter, r *http.Request) {
	address, err := h.addresses.GetDefaultAddress(r.Context(), actorFrom(r).ID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, address)
}

// GetAddress handles GET /api/v1/addresses/{id}
func (h *AddressHandler) GetAddress(w http.ResponseWriter, r *http.Request) {
	address, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	httputil.WriteData(w, http.StatusOK, address)
}

// UpdateAddress handles PUT /api/v1/addresses/{id}
func (h *AddressHandler) UpdateAddress(w http.ResponseWriter, r *http.Request) {
	address, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	var req UpdateAddressRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	updated, err := h.addresses.UpdateAddress(r.Context(), address.ID, service.UpdateAddressInput{
		Street:     req.Street,
		City:       req.City,
		State:      req.State,
		PostalCode: req.PostalCode,
		Country:    req.Country,
		Apartment:  req.Apartment,
		Floor:      req.Floor,
		Entrance:   req.Entrance,
		Notes:      req.Notes,
		IsDefault:  req.IsDefault,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, updated)
}

// DeleteAddress handles DELETE /api/v1/addresses/{id}
func (h *AddressHandler) DeleteAddress(w http.ResponseWriter, r *http.Request) {
	address, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	deleted, err := h.addresses.DeleteAddress(r.Context(), address.ID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, deleted)
}

// SetDefaultAddress handles POST /api/v1/addresses/{id}/default
func (h *AddressHandler) SetDefaultAddress(w http.ResponseWriter, r *http.Request) {
	address, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	updated, err := h.addresses.SetAsDefault(r.Context(), address.ID, address.UserID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, updated)
}

// loadOwned fetches the address named in the path and checks that the caller
// may act on it. On failure the response is written and ok is false.
func (h *AddressHandler) loadOwned(w http.ResponseWriter, r *http.Request) (*domain.Address, bool) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return nil, false
	}

	address, err := h.addresses.GetAddress(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return nil, false
	}
	if err := authz.CanAct(actorFrom(r), address.UserID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return nil, false
	}
	return address, true
}
