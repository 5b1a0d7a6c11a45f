package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/avalencia/storefront-backend/pkg/types"
)

// UserAddress is a stored shipping address. The oldest address doubles as the
// checkout fallback when a request omits shippingAddress.
type UserAddress struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	Label     string    `gorm:"column:label"`
	Line1     string    `gorm:"column:line1;not null"`
	City      string    `gorm:"column:city;not null"`
	State     string    `gorm:"column:state;not null"`
	Zip       string    `gorm:"column:zip;not null"`
	Country   string    `gorm:"column:country;not null"`
	IsDefault bool      `gorm:"column:is_default;not null;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Snapshot converts the stored row into the embeddable checkout address.
func (a UserAddress) Snapshot() types.Address {
	return types.Address{
		Label:   a.Label,
		Line1:   a.Line1,
		City:    a.City,
		State:   a.State,
		Zip:     a.Zip,
		Country: a.Country,
	}
}
