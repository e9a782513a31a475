package handler

import (
	"net/http"

	"farmapos/internal/dto"
	"farmapos/internal/service"

	"github.com/gin-gonic/gin"
)

type LogsHandler struct{ svc service.AuditService }

func NewLogsHandler(svc service.AuditService) *LogsHandler { return &LogsHandler{svc: svc} }

// List returns audit entries, newest first.
func (h *LogsHandler) List(c *gin.Context) {
	var filter dto.LogFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
