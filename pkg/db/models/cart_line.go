package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CartLine is the local snapshot of one product sitting in the shopper's cart.
// At most one row exists per ProductID.
type CartLine struct {
	ID              string          `gorm:"column:id;type:text;primaryKey"`
	ProductID       string          `gorm:"column:product_id;type:text;not null;uniqueIndex:idx_cart_lines_product_id" validate:"required"`
	Name            string          `gorm:"column:name;type:text;not null"`
	Price           decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	BrandOrCategory string          `gorm:"column:brand_or_category;type:text"`
	Images          []string        `gorm:"column:images;type:text;serializer:json"`
	Description     string          `gorm:"column:description;type:text"`
	StockQuantity   int             `gorm:"column:stock_quantity;not null" validate:"min=1"`
	CartQuantity    int             `gorm:"column:cart_quantity;not null" validate:"min=1"`
	AddedAt         time.Time       `gorm:"column:added_at;not null"`
}

func (CartLine) TableName() string { return "cart_lines" }

// BeforeCreate assigns an id when the caller left it empty.
func (c *CartLine) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.AddedAt.IsZero() {
		c.AddedAt = time.Now().UTC()
	}
	return nil
}
