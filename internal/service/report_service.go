package service

import (
	"context"
	"time"

	"farmapos/internal/dto"
	"farmapos/internal/model"
	"farmapos/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	nearExpiryWindow     = 90 * 24 * time.Hour
	recentMovementWindow = 30 * 24 * time.Hour
	topN                 = 5
)

type ReportService interface {
	Sales(ctx context.Context, r dto.DateRange) (*dto.SalesReport, error)
	MySales(ctx context.Context, actor Actor, r dto.DateRange) (*dto.MySalesReport, error)
	StockAlerts(ctx context.Context) (*dto.StockAlertsReport, error)
	StockDashboard(ctx context.Context) ([]dto.NamedValue, error)
	MostSold(ctx context.Context) ([]dto.ProductQuantity, error)
	SalesByCategory(ctx context.Context) ([]dto.CategorySales, error)
	RecentStockMovements(ctx context.Context) ([]dto.ProductNetChange, error)
	StockMovements(ctx context.Context, filter dto.StockMovementFilter) ([]dto.StockMovementResponse, error)
}

type reportService struct {
	repo         repository.ReportRepository
	saleRepo     repository.SaleRepository
	movementRepo repository.StockMovementRepository
	now          func() time.Time
}

func NewReportService(
	repo repository.ReportRepository,
	saleRepo repository.SaleRepository,
	movementRepo repository.StockMovementRepository,
) ReportService {
	return &reportService{repo: repo, saleRepo: saleRepo, movementRepo: movementRepo, now: time.Now}
}

func (s *reportService) Sales(ctx context.Context, r dto.DateRange) (*dto.SalesReport, error) {
	sales, err := s.salesIn(ctx, r, nil)
	if err != nil {
		return nil, err
	}
	report := &dto.SalesReport{
		TotalSalesValue: decimal.Zero,
		TotalProfit:     decimal.Zero,
		SalesByEmployee: map[string]dto.EmployeeSales{},
		SaleCount:       len(sales),
		DetailedSales:   make([]dto.SaleSummary, len(sales)),
	}
	for i := range sales {
		sale := &sales[i]
		profit := saleProfit(sale)
		report.TotalSalesValue = report.TotalSalesValue.Add(sale.Total)
		report.TotalProfit = report.TotalProfit.Add(profit)

		name := attendantName(sale)
		emp := report.SalesByEmployee[name]
		emp.Total = emp.Total.Add(sale.Total)
		emp.Count++
		report.SalesByEmployee[name] = emp

		summary := summarize(sale)
		summary.AttendantName = name
		summary.Profit = &profit
		report.DetailedSales[i] = summary
	}
	return report, nil
}

func (s *reportService) MySales(ctx context.Context, actor Actor, r dto.DateRange) (*dto.MySalesReport, error) {
	sales, err := s.salesIn(ctx, r, &actor.ID)
	if err != nil {
		return nil, err
	}
	report := &dto.MySalesReport{
		TotalSalesValue: decimal.Zero,
		SaleCount:       len(sales),
		DetailedSales:   make([]dto.SaleSummary, len(sales)),
	}
	for i := range sales {
		report.TotalSalesValue = report.TotalSalesValue.Add(sales[i].Total)
		report.DetailedSales[i] = summarize(&sales[i])
	}
	return report, nil
}

func (s *reportService) salesIn(ctx context.Context, r dto.DateRange, attendant *uuid.UUID) ([]model.Sale, error) {
	from, to, err := parseDateRange(r.From, r.To)
	if err != nil {
		return nil, err
	}
	sales, _, err := s.saleRepo.List(ctx, repository.SaleQuery{From: from, To: to, AttendantID: attendant})
	return sales, err
}

// saleProfit is the sale total minus the current purchase cost of its items.
func saleProfit(sale *model.Sale) decimal.Decimal {
	cost := decimal.Zero
	for i := range sale.Items {
		it := &sale.Items[i]
		if it.Product != nil {
			cost = cost.Add(it.Product.PurchasePrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
		}
	}
	return sale.Total.Sub(cost)
}

func attendantName(sale *model.Sale) string {
	if sale.Attendant != nil {
		return sale.Attendant.Name
	}
	return "unknown"
}

func summarize(sale *model.Sale) dto.SaleSummary {
	return dto.SaleSummary{
		ID:            sale.ID.String(),
		CreatedAt:     sale.CreatedAt,
		Total:         sale.Total,
		PaymentMethod: sale.PaymentMethod,
		ItemCount:     len(sale.Items),
	}
}

func (s *reportService) StockAlerts(ctx context.Context) (*dto.StockAlertsReport, error) {
	low, err := s.repo.LowStock(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	near, err := s.repo.ExpiringBetween(ctx, now, now.Add(nearExpiryWindow))
	if err != nil {
		return nil, err
	}
	return &dto.StockAlertsReport{LowStockProducts: low, NearExpiryProducts: near}, nil
}

func (s *reportService) StockDashboard(ctx context.Context) ([]dto.NamedValue, error) {
	total, err := s.repo.CountProducts(ctx)
	if err != nil {
		return nil, err
	}
	alerts, err := s.StockAlerts(ctx)
	if err != nil {
		return nil, err
	}
	return []dto.NamedValue{
		{Name: "Total products", Value: total},
		{Name: "Low stock", Value: int64(len(alerts.LowStockProducts))},
		{Name: "Near expiry", Value: int64(len(alerts.NearExpiryProducts))},
	}, nil
}

func (s *reportService) MostSold(ctx context.Context) ([]dto.ProductQuantity, error) {
	return s.repo.MostSold(ctx, topN)
}

func (s *reportService) SalesByCategory(ctx context.Context) ([]dto.CategorySales, error) {
	return s.repo.SalesByCategory(ctx, topN)
}

func (s *reportService) RecentStockMovements(ctx context.Context) ([]dto.ProductNetChange, error) {
	return s.repo.NetStockChangeSince(ctx, s.now().UTC().Add(-recentMovementWindow))
}

func (s *reportService) StockMovements(ctx context.Context, filter dto.StockMovementFilter) ([]dto.StockMovementResponse, error) {
	from, to, err := parseDateRange(filter.From, filter.To)
	if err != nil {
		return nil, err
	}
	q := repository.StockMovementFilter{From: from, To: to}
	if filter.ProductID != "" {
		pid, err := uuid.Parse(filter.ProductID)
		if err != nil {
			return nil, &ValidationError{Fields: map[string]string{"productId": "productId must be a valid product id"}}
		}
		q.ProductID = &pid
	}

	movements, err := s.movementRepo.List(ctx, q)
	if err != nil {
		return nil, err
	}
	resp := make([]dto.StockMovementResponse, len(movements))
	for i := range movements {
		m := &movements[i]
		resp[i] = dto.StockMovementResponse{
			ID:             m.ID.String(),
			ProductID:      m.ProductID.String(),
			Kind:           string(m.Kind),
			QuantityChange: m.QuantityChange,
			PreviousStock:  m.PreviousStock,
			NewStock:       m.NewStock,
			Reason:         m.Reason,
			UserID:         m.UserID.String(),
			CreatedAt:      m.CreatedAt,
		}
		if m.Product != nil {
			resp[i].ProductName = m.Product.Name
		}
		if m.User != nil {
			resp[i].UserName = m.User.Name
		}
	}
	return resp, nil
}
