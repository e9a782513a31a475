package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MovementKind classifies a StockMovement.
type MovementKind string

const (
	MovementSale       MovementKind = "SALE"
	MovementAdjustment MovementKind = "ADJUSTMENT"
)

// ReasonManualAdjustment is the reason recorded for stock edits made through the catalog.
const ReasonManualAdjustment = "manual adjustment"

// StockMovement is an immutable entry of the stock ledger.
// QuantityChange is signed: negative = consumption, positive = entry.
// Rows are never updated; they are only removed together with their product.
type StockMovement struct {
	ID             uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID      uuid.UUID    `gorm:"type:uuid;not null;index" json:"productId"`
	Kind           MovementKind `gorm:"type:varchar(20);not null" json:"kind"`
	QuantityChange int          `gorm:"not null" json:"quantityChange"`
	PreviousStock  int          `gorm:"not null" json:"previousStock"`
	NewStock       int          `gorm:"not null" json:"newStock"`
	Reason         string       `gorm:"not null" json:"reason"`
	UserID         uuid.UUID    `gorm:"type:uuid;not null;index" json:"userId"`
	// ReferenceID is the sale id for SALE movements.
	ReferenceID *uuid.UUID `gorm:"type:uuid;index" json:"referenceId"`
	CreatedAt   time.Time  `gorm:"index" json:"createdAt"`

	Product *Product `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"product,omitempty"`
	User    *User    `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (m *StockMovement) BeforeCreate(_ *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// BeforeUpdate rejects any attempt to rewrite the ledger.
func (m *StockMovement) BeforeUpdate(_ *gorm.DB) error { return ErrImmutable }
