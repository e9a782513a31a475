package dto

import (
	"time"

	"farmapos/internal/model"

	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CreateProductRequest struct {
	Name             string          `json:"name"             validate:"required,min=2,max=100"`
	Category         string          `json:"category"         validate:"required,min=2,max=50"`
	Dosage           *string         `json:"dosage"           validate:"omitempty,max=50"`
	Manufacturer     *string         `json:"manufacturer"     validate:"omitempty,max=100"`
	PurchasePrice    decimal.Decimal `json:"purchasePrice"    validate:"required,gt=0,money"`
	SellingPrice     decimal.Decimal `json:"sellingPrice"     validate:"required,gt=0,money"`
	StockQuantity    *int            `json:"stockQuantity"    validate:"required,min=0"`
	MinStockQuantity *int            `json:"minStockQuantity" validate:"required,min=0"`
	ExpiryDate       Date            `json:"expiryDate"       validate:"required"`
	Barcode          *string         `json:"barcode"          validate:"omitempty,max=50"`
}

// UpdateProductRequest is sparse: nil fields are left untouched.
type UpdateProductRequest struct {
	Name             *string          `json:"name"             validate:"omitempty,min=2,max=100"`
	Category         *string          `json:"category"         validate:"omitempty,min=2,max=50"`
	Dosage           *string          `json:"dosage"           validate:"omitempty,max=50"`
	Manufacturer     *string          `json:"manufacturer"     validate:"omitempty,max=100"`
	PurchasePrice    *decimal.Decimal `json:"purchasePrice"    validate:"omitempty,gt=0,money"`
	SellingPrice     *decimal.Decimal `json:"sellingPrice"     validate:"omitempty,gt=0,money"`
	StockQuantity    *int             `json:"stockQuantity"    validate:"omitempty,min=0"`
	MinStockQuantity *int             `json:"minStockQuantity" validate:"omitempty,min=0"`
	ExpiryDate       *Date            `json:"expiryDate"`
	Barcode          *string          `json:"barcode"          validate:"omitempty,max=50"`
}

// ─── Filter / Pagination ─────────────────────────────────────────────────────

type ProductFilter struct {
	Search   string `form:"search"`
	Category string `form:"category"`
	Page     int    `form:"page,default=1"   validate:"min=1"`
	Limit    int    `form:"limit,default=100" validate:"min=1,max=500"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ProductListResponse struct {
	Data       []model.Product `json:"data"`
	Total      int64           `json:"total"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	TotalPages int             `json:"totalPages"`
}

// ProductLookupResponse is returned by the barcode lookup used at the counter.
type ProductLookupResponse struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Category      string          `json:"category"`
	Dosage        *string         `json:"dosage"`
	SellingPrice  decimal.Decimal `json:"sellingPrice"`
	StockQuantity int             `json:"stockQuantity"`
	ExpiryDate    time.Time       `json:"expiryDate"`
}
