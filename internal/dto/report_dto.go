package dto

import (
	"time"

	"farmapos/internal/model"

	"github.com/shopspring/decimal"
)

// DateRange is bound from ?from=&to= (RFC 3339 or YYYY-MM-DD).
type DateRange struct {
	From string `form:"from"`
	To   string `form:"to"`
}

type StockMovementFilter struct {
	DateRange
	ProductID string `form:"productId" validate:"omitempty,uuid"`
}

type SaleSummary struct {
	ID            string           `json:"id"`
	CreatedAt     time.Time        `json:"createdAt"`
	AttendantName string           `json:"attendantName,omitempty"`
	Total         decimal.Decimal  `json:"total"`
	Profit        *decimal.Decimal `json:"profit,omitempty"`
	PaymentMethod string           `json:"paymentMethod"`
	ItemCount     int              `json:"itemCount"`
}

type EmployeeSales struct {
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

type SalesReport struct {
	TotalSalesValue decimal.Decimal          `json:"totalSalesValue"`
	TotalProfit     decimal.Decimal          `json:"totalProfit"`
	SalesByEmployee map[string]EmployeeSales `json:"salesByEmployee"`
	SaleCount       int                      `json:"saleCount"`
	DetailedSales   []SaleSummary            `json:"detailedSales"`
}

type MySalesReport struct {
	TotalSalesValue decimal.Decimal `json:"totalSalesValue"`
	SaleCount       int             `json:"saleCount"`
	DetailedSales   []SaleSummary   `json:"detailedSales"`
}

type StockAlertsReport struct {
	LowStockProducts   []model.Product `json:"lowStockProducts"`
	NearExpiryProducts []model.Product `json:"nearExpiryProducts"`
}

// NamedValue is the {name, value} pair the dashboard charts consume.
type NamedValue struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

type ProductQuantity struct {
	ProductID    string `json:"productId"`
	Name         string `json:"name"`
	QuantitySold int64  `json:"quantitySold"`
}

type CategorySales struct {
	Name       string          `json:"name"`
	TotalSales decimal.Decimal `json:"totalSales"`
}

type ProductNetChange struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	NetChange int64  `json:"netChange"`
}

type StockMovementResponse struct {
	ID             string    `json:"id"`
	ProductID      string    `json:"productId"`
	ProductName    string    `json:"productName"`
	Kind           string    `json:"kind"`
	QuantityChange int       `json:"quantityChange"`
	PreviousStock  int       `json:"previousStock"`
	NewStock       int       `json:"newStock"`
	Reason         string    `json:"reason"`
	UserID         string    `json:"userId"`
	UserName       string    `json:"userName"`
	CreatedAt      time.Time `json:"createdAt"`
}
