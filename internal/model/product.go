package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a catalog entry. StockQuantity is mutated by inventory edits and
// by sale processing; every change is mirrored by a StockMovement.
type Product struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Name             string          `gorm:"size:100;index;not null" json:"name"`
	Category         string          `gorm:"size:50;index;not null" json:"category"`
	Dosage           *string         `gorm:"size:50" json:"dosage"`
	Manufacturer     *string         `gorm:"size:100" json:"manufacturer"`
	PurchasePrice    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"purchasePrice"`
	SellingPrice     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"sellingPrice"`
	StockQuantity    int             `gorm:"not null;default:0" json:"stockQuantity"`
	MinStockQuantity int             `gorm:"not null;default:0" json:"minStockQuantity"`
	ExpiryDate       time.Time       `gorm:"not null;index" json:"expiryDate"`
	// Barcode is nil when the product has none; uniqueness applies to non-nil values only.
	Barcode   *string   `gorm:"size:50;uniqueIndex" json:"barcode"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (p *Product) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// IsLowStock reports whether the stock is at or below the configured minimum.
func (p *Product) IsLowStock() bool { return p.StockQuantity <= p.MinStockQuantity }
