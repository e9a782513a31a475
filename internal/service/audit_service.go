package service

import (
	"context"

	"farmapos/internal/dto"
	"farmapos/internal/infra"
	"farmapos/internal/model"
	"farmapos/internal/repository"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditService reads the audit log and appends to it from inside other
// services' transactions.
type AuditService interface {
	List(ctx context.Context, filter dto.LogFilter) (*dto.LogListResponse, error)
	// RecordTx appends an entry using tx; the returned entry is published by
	// Publish once the caller's transaction committed.
	RecordTx(tx *gorm.DB, actor Actor, action, targetID string, details map[string]interface{}) (*model.AuditLog, error)
	Publish(ctx context.Context, entry *model.AuditLog)
}

type auditService struct {
	repo   repository.AuditLogRepository
	events infra.EventPublisher
}

func NewAuditService(repo repository.AuditLogRepository, events infra.EventPublisher) AuditService {
	return &auditService{repo: repo, events: events}
}

func (s *auditService) List(ctx context.Context, filter dto.LogFilter) (*dto.LogListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 100
	}
	logs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &dto.LogListResponse{Data: logs, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

func (s *auditService) RecordTx(tx *gorm.DB, actor Actor, action, targetID string, details map[string]interface{}) (*model.AuditLog, error) {
	entry := &model.AuditLog{
		ActorID:   actor.ID,
		ActorName: actor.Name,
		Action:    action,
		TargetID:  targetID,
		Details:   datatypes.JSONMap(details),
	}
	if err := s.repo.CreateTx(tx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *auditService) Publish(ctx context.Context, entry *model.AuditLog) {
	if entry == nil {
		return
	}
	publish(ctx, s.events, infra.Event{
		Type:    infra.EventAudit,
		Key:     entry.TargetID,
		Payload: entry,
	})
}
