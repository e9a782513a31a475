package dto

import "farmapos/internal/model"

type LogFilter struct {
	Action string `form:"action"`
	Page   int    `form:"page,default=1"   validate:"min=1"`
	Limit  int    `form:"limit,default=100" validate:"min=1,max=500"`
}

type LogListResponse struct {
	Data  []model.AuditLog `json:"data"`
	Total int64            `json:"total"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
}
