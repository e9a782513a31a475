package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Payment methods accepted at the counter.
const (
	PaymentCash     = "dinheiro"
	PaymentCard     = "pos"
	PaymentTransfer = "transferencia"
)

// PaymentMethods lists the accepted payment method codes.
var PaymentMethods = []string{PaymentCash, PaymentCard, PaymentTransfer}

// Sale is one completed checkout. Total is always computed server-side from
// SaleItem snapshots: max(0, Σ quantity × priceAtSale − discount).
type Sale struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Total          decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Discount       decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	PaymentMethod  string          `gorm:"type:varchar(20);not null"`
	AttendantID    uuid.UUID       `gorm:"type:uuid;not null;index;uniqueIndex:idx_sales_attendant_idempotency,priority:1"`
	IdempotencyKey *string         `gorm:"type:varchar(100);uniqueIndex:idx_sales_attendant_idempotency,priority:2"`
	CreatedAt      time.Time       `gorm:"index"`

	Attendant *User      `gorm:"foreignKey:AttendantID"`
	Items     []SaleItem `gorm:"foreignKey:SaleID"`
}

// SaleItem is one cart line frozen at checkout time.
type SaleItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	SaleID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	Quantity    int             `gorm:"not null"`
	PriceAtSale decimal.Decimal `gorm:"type:decimal(12,2);not null"`

	Product *Product `gorm:"foreignKey:ProductID;constraint:OnDelete:RESTRICT"`
}

func (s *Sale) BeforeCreate(_ *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (i *SaleItem) BeforeCreate(_ *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// LineTotal is quantity × priceAtSale.
func (i *SaleItem) LineTotal() decimal.Decimal {
	return i.PriceAtSale.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Subtotal sums the line totals before the discount is applied.
func (s *Sale) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for i := range s.Items {
		sum = sum.Add(s.Items[i].LineTotal())
	}
	return sum
}

// SaleTotal applies the discount to subtotal and floors the result at zero.
func SaleTotal(subtotal, discount decimal.Decimal) decimal.Decimal {
	total := subtotal.Sub(discount)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}
