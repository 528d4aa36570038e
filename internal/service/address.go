package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/DeliveryGo/internal/domain"
	"github.com/utafrali/DeliveryGo/internal/repository"
	apperrors "github.com/utafrali/DeliveryGo/pkg/errors"
)

// AddressService implements the business logic for delivery addresses.
type AddressService struct {
	repo   repository.AddressRepository
	logger *slog.Logger
}

// NewAddressService creates a new address service.
func NewAddressService(repo repository.AddressRepository, logger *slog.Logger) *AddressService {
	return &AddressService{repo: repo, logger: logger}
}

// CreateAddressInput holds the parameters for creating an address.
type CreateAddressInput struct {
	UserID     string
	Street     string
	City       string
	State      string
	PostalCode string
	Country    string
	Apartment  string
	Floor      string
	Entrance   string
	Notes      string
	IsDefault  bool
}

// UpdateAddressInput holds the parameters for updating an address. Nil fields
// are left unchanged. Setting IsDefault to true makes the address the
// owner's default; false is ignored.
type UpdateAddressInput struct {
	Street     *string
	City       *string
	State      *string
	PostalCode *string
	Country    *string
	Apartment  *string
	Floor      *string
	Entrance   *string
	Notes      *string
	IsDefault  *bool
}

// CreateAddress validates and stores a new address.
func (s *AddressService) CreateAddress(ctx context.Context, input CreateAddressInput) (*domain.Address, error) {
	if input.UserID == "" {
		return nil, apperrors.Validation("user_id is required")
	}
	if strings.TrimSpace(input.Street) == "" {
		return nil, apperrors.Validation("street is required")
	}
	if strings.TrimSpace(input.City) == "" {
		return nil, apperrors.Validation("city is required")
	}
	if strings.TrimSpace(input.PostalCode) == "" {
		return nil, apperrors.Validation("postal_code is required")
	}

	country := strings.TrimSpace(input.Country)
	if country == "" {
		country = domain.DefaultCountry
	}

	address := &domain.Address{
		ID:         uuid.New().String(),
		UserID:     input.UserID,
		Street:     strings.TrimSpace(input.Street),
		City:       strings.TrimSpace(input.City),
		State:      input.State,
		PostalCode: strings.TrimSpace(input.PostalCode),
		Country:    country,
		Apartment:  input.Apartment,
		Floor:      input.Floor,
		Entrance:   input.Entrance,
		Notes:      input.Notes,
		IsDefault:  input.IsDefault,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, address); err != nil {
		return nil, fmt.Errorf("create address: %w", err)
	}

	s.logger.InfoContext(ctx, "address created",
		slog.String("address_id", address.ID),
		slog.String("user_id", address.UserID),
		slog.Bool("is_default", address.IsDefault),
	)
	return address, nil
}

// GetAddress retrieves an address by its ID.
func (s *AddressService) GetAddress(ctx context.Context, id string) (*domain.Address, error) {
	address, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get address by id: %w", err)
	}
	return address, nil
}

// GetDefaultAddress returns the user's default address.
func (s *AddressService) GetDefaultAddress(ctx context.Context, userID string) (*domain.Address, error) {
	address, err := s.repo.GetDefault(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get default address: %w", err)
	}
	return address, nil
}

// ListAddresses returns one window of addresses. An empty userID lists every
// user's addresses.
func (s *AddressService) ListAddresses(ctx context.Context, userID string, skip, limit int) ([]domain.Address, int, error) {
	filter := repository.AddressFilter{
		ListParams: repository.ListParams{Skip: skip, Limit: limit},
	}
	if userID != "" {
		filter.UserID = &userID
	}

	addresses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list addresses: %w", err)
	}
	return addresses, total, nil
}

// UpdateAddress applies the set fields.
func (s *AddressService) UpdateAddress(ctx context.Context, id string, input UpdateAddressInput) (*domain.Address, error) {
	address, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get address for update: %w", err)
	}

	if err := applyRequired(&address.Street, input.Street, "street"); err != nil {
		return nil, err
	}
	if err := applyRequired(&address.City, input.City, "city"); err != nil {
		return nil, err
	}
	if err := applyRequired(&address.PostalCode, input.PostalCode, "postal_code"); err != nil {
		return nil, err
	}
	if err := applyRequired(&address.Country, input.Country, "country"); err != nil {
		return nil, err
	}
	if input.State != nil {
		address.State = *input.State
	}
	if input.Apartment != nil {
		address.Apartment = *input.Apartment
	}
	if input.Floor != nil {
		address.Floor = *input.Floor
	}
	if input.Entrance != nil {
		address.Entrance = *input.Entrance
	}
	if input.Notes != nil {
		address.Notes = *input.Notes
	}

	if err := s.repo.Update(ctx, address); err != nil {
		return nil, fmt.Errorf("update address: %w", err)
	}

	if input.IsDefault != nil && *input.IsDefault && !address.IsDefault {
		return s.SetAsDefault(ctx, address.ID, address.UserID)
	}

	s.logger.InfoContext(ctx, "address updated", slog.String("address_id", address.ID))
	return address, nil
}

// DeleteAddress removes an address and returns it.
func (s *AddressService) DeleteAddress(ctx context.Context, id string) (*domain.Address, error) {
	address, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get address for delete: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return nil, fmt.Errorf("delete address: %w", err)
	}

	s.logger.InfoContext(ctx, "address deleted", slog.String("address_id", id))
	return address, nil
}

// SetAsDefault makes addressID the single default address of userID. It
// fails with NotFound when the address does not belong to userID.
func (s *AddressService) SetAsDefault(ctx context.Context, addressID, userID string) (*domain.Address, error) {
	address, err := s.repo.SetDefault(ctx, userID, addressID)
	if err != nil {
		return nil, fmt.Errorf("set default address: %w", err)
	}

	s.logger.InfoContext(ctx, "default address changed",
		slog.String("address_id", addressID),
		slog.String("user_id", userID),
	)
	return address, nil
}

func applyRequired(dst *string, v *string, field string) error {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return apperrors.Validation(field + " must not be empty")
	}
	*dst = trimmed
	return nil
}
