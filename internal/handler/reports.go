package handler

import (
	"context"
	"net/http"

	"farmapos/internal/dto"
	"farmapos/internal/service"

	"github.com/gin-gonic/gin"
)

type ReportsHandler struct{ svc service.ReportService }

func NewReportsHandler(svc service.ReportService) *ReportsHandler { return &ReportsHandler{svc: svc} }

func (h *ReportsHandler) Sales(c *gin.Context) {
	var r dto.DateRange
	if !bindQuery(c, &r) {
		return
	}
	reply(c, func(ctx context.Context) (interface{}, error) { return h.svc.Sales(ctx, r) })
}

func (h *ReportsHandler) MySales(c *gin.Context) {
	var r dto.DateRange
	if !bindQuery(c, &r) {
		return
	}
	a := actor(c)
	reply(c, func(ctx context.Context) (interface{}, error) { return h.svc.MySales(ctx, a, r) })
}

func (h *ReportsHandler) StockAlerts(c *gin.Context) {
	reply(c, func(ctx context.Context) (interface{}, error) { return h.svc.StockAlerts(ctx) })
}

func (h *ReportsHandler) StockDashboard(c *gin.Context) {
	reply(c, func(ctx context.Context) (interface{}, error) { return h.svc.StockDashboard(ctx) })
}

func (h *ReportsHandler) MostSold(c *gin.Context) {
	reply(c, func(ctx context.Context) (interface{}, error) { return h.svc.MostSold(ctx) })
}

func (h *ReportsHandler) SalesByCategory(c *gin.Context) {
	reply(c, func(ctx context.Context) (interface{}, error) { return h.svc.SalesByCategory(ctx) })
}

func (h *ReportsHandler) RecentStockMovements(c *gin.Context) {
	reply(c, func(ctx context.Context) (interface{}, error) { return h.svc.RecentStockMovements(ctx) })
}

func (h *ReportsHandler) StockMovements(c *gin.Context) {
	var f dto.StockMovementFilter
	if !bindQuery(c, &f) {
		return
	}
	reply(c, func(ctx context.Context) (interface{}, error) { return h.svc.StockMovements(ctx, f) })
}

// reply runs a read-only query and writes its result as 200.
func reply(c *gin.Context, query func(ctx context.Context) (interface{}, error)) {
	resp, err := query(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
