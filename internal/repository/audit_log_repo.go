package repository

import (
	"context"

	"farmapos/internal/dto"
	"farmapos/internal/model"

	"gorm.io/gorm"
)

type AuditLogRepository interface {
	CreateTx(tx *gorm.DB, l *model.AuditLog) error
	List(ctx context.Context, filter dto.LogFilter) ([]model.AuditLog, int64, error)
}

type auditLogRepo struct{ db *gorm.DB }

func NewAuditLogRepository(db *gorm.DB) AuditLogRepository { return &auditLogRepo{db: db} }

func (r *auditLogRepo) CreateTx(tx *gorm.DB, l *model.AuditLog) error {
	return tx.Create(l).Error
}

func (r *auditLogRepo) List(ctx context.Context, filter dto.LogFilter) ([]model.AuditLog, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.AuditLog{})
	if filter.Action != "" {
		q = q.Where("action = ?", filter.Action)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []model.AuditLog
	offset := (filter.Page - 1) * filter.Limit
	err := q.Order("created_at DESC").Offset(offset).Limit(filter.Limit).Find(&logs).Error
	return logs, total, err
}
