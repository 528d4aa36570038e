package domain

import (
	"math"
	"time"
)

// Product is an item on the menu. Price is in minor currency units.
type Product struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Price         int64     `json:"price"`
	ImageURL      string    `json:"image_url,omitempty"`
	Category      string    `json:"category,omitempty"`
	IsAvailable   bool      `json:"is_available"`
	StockQuantity int       `json:"stock_quantity"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// InStock reports whether the product can currently be offered.
func (p *Product) InStock() bool {
	return p.IsAvailable && p.StockQuantity > 0
}

// ApplyStockDelta adds delta to the stock quantity, clamping to the range of
// the INTEGER stock column.
func (p *Product) ApplyStockDelta(delta int) {
	p.StockQuantity = min(max(p.StockQuantity+delta, 0), math.MaxInt32)
}

// ProductUpdate carries the editable product fields. Nil fields are left
// unchanged.
type ProductUpdate struct {
	Name          *string
	Description   *string
	Price         *int64
	ImageURL      *string
	Category      *string
	IsAvailable   *bool
	StockQuantity *int
}

// Apply copies the set fields onto p.
func (u ProductUpdate) Apply(p *Product) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.Price != nil {
		p.Price = *u.Price
	}
	if u.ImageURL != nil {
		p.ImageURL = *u.ImageURL
	}
	if u.Category != nil {
		p.Category = *u.Category
	}
	if u.IsAvailable != nil {
		p.IsAvailable = *u.IsAvailable
	}
	if u.StockQuantity != nil {
		p.StockQuantity = *u.StockQuantity
	}
}
