package repository

import (
	"context"
	"time"

	"farmapos/internal/dto"
	"farmapos/internal/model"

	"gorm.io/gorm"
)

// ReportRepository runs the read-only aggregate queries behind the dashboards.
// All queries stick to portable SQL so they run on Postgres and SQLite alike.
type ReportRepository interface {
	LowStock(ctx context.Context) ([]model.Product, error)
	ExpiringBetween(ctx context.Context, from, to time.Time) ([]model.Product, error)
	CountProducts(ctx context.Context) (int64, error)
	MostSold(ctx context.Context, limit int) ([]dto.ProductQuantity, error)
	SalesByCategory(ctx context.Context, limit int) ([]dto.CategorySales, error)
	NetStockChangeSince(ctx context.Context, since time.Time) ([]dto.ProductNetChange, error)
}

type reportRepo struct{ db *gorm.DB }

func NewReportRepository(db *gorm.DB) ReportRepository { return &reportRepo{db: db} }

func (r *reportRepo) LowStock(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).
		Where("stock_quantity <= min_stock_quantity").
		Order("stock_quantity ASC, name ASC").
		Find(&products).Error
	return products, err
}

func (r *reportRepo) ExpiringBetween(ctx context.Context, from, to time.Time) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).
		Where("expiry_date >= ? AND expiry_date <= ? AND stock_quantity > 0", from, to).
		Order("expiry_date ASC").
		Find(&products).Error
	return products, err
}

func (r *reportRepo) CountProducts(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Product{}).Count(&n).Error
	return n, err
}

func (r *reportRepo) MostSold(ctx context.Context, limit int) ([]dto.ProductQuantity, error) {
	var rows []dto.ProductQuantity
	err := r.db.WithContext(ctx).
		Table("sale_items").
		Select("products.id AS product_id, products.name AS name, SUM(sale_items.quantity) AS quantity_sold").
		Joins("JOIN products ON products.id = sale_items.product_id").
		Group("products.id, products.name").
		Order("quantity_sold DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

func (r *reportRepo) SalesByCategory(ctx context.Context, limit int) ([]dto.CategorySales, error) {
	var rows []dto.CategorySales
	err := r.db.WithContext(ctx).
		Table("sale_items").
		Select("products.category AS name, SUM(sale_items.quantity * sale_items.price_at_sale) AS total_sales").
		Joins("JOIN products ON products.id = sale_items.product_id").
		Group("products.category").
		Order("total_sales DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

func (r *reportRepo) NetStockChangeSince(ctx context.Context, since time.Time) ([]dto.ProductNetChange, error) {
	var rows []dto.ProductNetChange
	err := r.db.WithContext(ctx).
		Table("stock_movements").
		Select("products.id AS product_id, products.name AS name, SUM(stock_movements.quantity_change) AS net_change").
		Joins("JOIN products ON products.id = stock_movements.product_id").
		Where("stock_movements.created_at >= ?", since).
		Group("products.id, products.name").
		Order("products.name ASC").
		Scan(&rows).Error
	return rows, err
}
