package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BeforeCreate assigns IDs client-side so inserts behave the same on postgres
// and the sqlite test databases.

func (u *User) BeforeCreate(*gorm.DB) error        { ensureID(&u.ID); return nil }
func (a *UserAddress) BeforeCreate(*gorm.DB) error { ensureID(&a.ID); return nil }
func (p *Product) BeforeCreate(*gorm.DB) error     { ensureID(&p.ID); return nil }
func (c *Cart) BeforeCreate(*gorm.DB) error        { ensureID(&c.ID); return nil }
func (i *CartItem) BeforeCreate(*gorm.DB) error    { ensureID(&i.ID); return nil }
func (o *Order) BeforeCreate(*gorm.DB) error       { ensureID(&o.ID); return nil }
func (i *OrderItem) BeforeCreate(*gorm.DB) error   { ensureID(&i.ID); return nil }
func (p *Promotion) BeforeCreate(*gorm.DB) error   { ensureID(&p.ID); return nil }
func (c *Coupon) BeforeCreate(*gorm.DB) error      { ensureID(&c.ID); return nil }
func (n *Notification) BeforeCreate(*gorm.DB) error { ensureID(&n.ID); return nil }
func (e *OutboxEvent) BeforeCreate(*gorm.DB) error  { ensureID(&e.ID); return nil }

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
