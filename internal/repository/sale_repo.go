package repository

import (
	"context"
	"time"

	"farmapos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SaleQuery filters sale listings. Nil fields are ignored.
type SaleQuery struct {
	From        *time.Time
	To          *time.Time
	AttendantID *uuid.UUID
	Page        int
	Limit       int // 0 = no pagination
}

type SaleRepository interface {
	CreateTx(tx *gorm.DB, s *model.Sale) error
	CreateItemTx(tx *gorm.DB, item *model.SaleItem) error
	FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Sale, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Sale, error)
	// FindByIdempotencyKey looks a key up within one attendant's sales.
	FindByIdempotencyKey(ctx context.Context, attendantID uuid.UUID, key string) (*model.Sale, error)
	List(ctx context.Context, q SaleQuery) ([]model.Sale, int64, error)
	DB() *gorm.DB // exposes the DB for transaction creation in service layer
}

type saleRepo struct{ db *gorm.DB }

func NewSaleRepository(db *gorm.DB) SaleRepository { return &saleRepo{db: db} }

func (r *saleRepo) DB() *gorm.DB { return r.db }

// CreateTx inserts the sale row only; items are written with CreateItemTx.
func (r *saleRepo) CreateTx(tx *gorm.DB, s *model.Sale) error {
	return tx.Omit("Attendant", "Items").Create(s).Error
}

func (r *saleRepo) CreateItemTx(tx *gorm.DB, item *model.SaleItem) error {
	return tx.Omit("Product").Create(item).Error
}

func (r *saleRepo) FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Sale, error) {
	var s model.Sale
	err := tx.Preload("Items.Product").Preload("Attendant").
		Where("id = ?", id).First(&s).Error
	return &s, err
}

func (r *saleRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Sale, error) {
	return r.FindByIDTx(r.db.WithContext(ctx), id)
}

func (r *saleRepo) FindByIdempotencyKey(ctx context.Context, attendantID uuid.UUID, key string) (*model.Sale, error) {
	var s model.Sale
	err := r.db.WithContext(ctx).Preload("Items.Product").Preload("Attendant").
		Where("attendant_id = ? AND idempotency_key = ?", attendantID, key).First(&s).Error
	return &s, err
}

func (r *saleRepo) List(ctx context.Context, q SaleQuery) ([]model.Sale, int64, error) {
	var sales []model.Sale
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Sale{})
	if q.From != nil {
		db = db.Where("created_at >= ?", *q.From)
	}
	if q.To != nil {
		db = db.Where("created_at <= ?", *q.To)
	}
	if q.AttendantID != nil {
		db = db.Where("attendant_id = ?", *q.AttendantID)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	db = db.Preload("Items.Product").Preload("Attendant").Order("created_at DESC")
	if q.Limit > 0 {
		page := q.Page
		if page < 1 {
			page = 1
		}
		db = db.Offset((page - 1) * q.Limit).Limit(q.Limit)
	}
	err := db.Find(&sales).Error
	return sales, total, err
}
