package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/avalencia/storefront-backend/pkg/db/models"
	"github.com/avalencia/storefront-backend/pkg/enums"
	"github.com/avalencia/storefront-backend/pkg/types"
)

// RegisterRequest is the signup payload.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	FullName string `json:"full_name" validate:"required"`
}

// LoginRequest carries login credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse is returned on successful register or login.
type AuthResponse struct {
	Token string      `json:"token"`
	User  UserSummary `json:"user"`
}

// UserSummary is the public view of an account.
type UserSummary struct {
	ID        uuid.UUID      `json:"id"`
	Email     string         `json:"email"`
	FullName  string         `json:"full_name"`
	Role      enums.UserRole `json:"role"`
	CreatedAt time.Time      `json:"created_at"`
}

// CreateAddressRequest adds a stored shipping address.
type CreateAddressRequest struct {
	Label     string `json:"label"`
	Line1     string `json:"line1" validate:"required"`
	City      string `json:"city" validate:"required"`
	State     string `json:"state" validate:"required"`
	Zip       string `json:"zip" validate:"required"`
	Country   string `json:"country" validate:"required"`
	IsDefault bool   `json:"is_default"`
}

// AddressResponse is the public view of a stored address.
type AddressResponse struct {
	ID        uuid.UUID     `json:"id"`
	Address   types.Address `json:"address"`
	IsDefault bool          `json:"is_default"`
	CreatedAt time.Time     `json:"created_at"`
}

// NewUserSummary maps a user row into its public view.
func NewUserSummary(user models.User) UserSummary {
	return UserSummary{
		ID:        user.ID,
		Email:     user.Email,
		FullName:  user.FullName,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	}
}

// NewAddressResponse maps an address row into its public view.
func NewAddressResponse(address models.UserAddress) AddressResponse {
	return AddressResponse{
		ID:        address.ID,
		Address:   address.Snapshot(),
		IsDefault: address.IsDefault,
		CreatedAt: address.CreatedAt,
	}
}
