package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CartItemRequest struct {
	ID       string `json:"id"       validate:"required,uuid"`
	Quantity int    `json:"quantity" validate:"required,min=1"`
}

type CheckoutRequest struct {
	Cart          []CartItemRequest `json:"cart"          validate:"required,min=1,unique=ID,dive"`
	Discount      LenientDecimal    `json:"discount"`
	PaymentMethod string            `json:"paymentMethod" validate:"required,oneof=dinheiro pos transferencia"`
	// CustomerEmail is optional. When present the receipt worker mails the PDF.
	CustomerEmail *string `json:"customerEmail" validate:"omitempty,email"`
	// IdempotencyKey is taken from the Idempotency-Key header, never from the body.
	IdempotencyKey *string `json:"-"`
}

type SaleFilter struct {
	From        string `form:"from"`
	To          string `form:"to"`
	AttendantID string `form:"attendantId"`
	Page        int    `form:"page,default=1"   validate:"min=1"`
	Limit       int    `form:"limit,default=50" validate:"min=1,max=200"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type SaleItemResponse struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	PriceAtSale decimal.Decimal `json:"priceAtSale"`
	LineTotal   decimal.Decimal `json:"lineTotal"`
}

type AttendantRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type SaleResponse struct {
	ID            string             `json:"id"`
	CreatedAt     time.Time          `json:"createdAt"`
	Subtotal      decimal.Decimal    `json:"subtotal"`
	Discount      decimal.Decimal    `json:"discount"`
	Total         decimal.Decimal    `json:"total"`
	PaymentMethod string             `json:"paymentMethod"`
	Attendant     AttendantRef       `json:"attendant"`
	Items         []SaleItemResponse `json:"items"`
	// Replayed is true when the sale was returned for a repeated Idempotency-Key.
	Replayed bool `json:"replayed,omitempty"`
}

type SaleListResponse struct {
	Data  []SaleResponse `json:"data"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}
