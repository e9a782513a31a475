package handler

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"farmapos/internal/apierror"
	"farmapos/internal/dto"
	"farmapos/internal/service"

	"github.com/gin-gonic/gin"
)

// IdempotencyHeader carries a client-generated key that makes checkout retries safe.
const IdempotencyHeader = "Idempotency-Key"

type SalesHandler struct{ svc service.SaleService }

func NewSalesHandler(svc service.SaleService) *SalesHandler { return &SalesHandler{svc: svc} }

// Create godoc
// @Summary      Register a sale
// @Description  Atomic checkout: prices lines server-side, decrements stock and records movements.
// @Description  Repeating a request with the same Idempotency-Key returns the original sale.
// @Tags         sales
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        Idempotency-Key header string false "Client-generated retry key"
// @Param        body body dto.CheckoutRequest true "Cart"
// @Success      201  {object} dto.SaleResponse
// @Success      200  {object} dto.SaleResponse "replayed"
// @Failure      400  {object} apierror.APIError
// @Failure      403  {object} apierror.APIError
// @Router       /v1/sales [post]
func (h *SalesHandler) Create(c *gin.Context) {
	var req dto.CheckoutRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if key := c.GetHeader(IdempotencyHeader); key != "" {
		if len(key) > 100 {
			c.JSON(http.StatusBadRequest, apierror.New("Idempotency-Key must be at most 100 characters"))
			return
		}
		req.IdempotencyKey = &key
	}

	resp, err := h.svc.Checkout(c.Request.Context(), actor(c), req)
	if err != nil {
		// An unknown cart product is a bad request for this route.
		var se *service.Error
		if errors.As(err, &se) && errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusBadRequest, apierror.New(se.Msg))
			return
		}
		respondError(c, err)
		return
	}
	status := http.StatusCreated
	if resp.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, resp)
}

func (h *SalesHandler) List(c *gin.Context) {
	var filter dto.SaleFilter
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

func (h *SalesHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	resp, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Receipt godoc
// @Summary      Download the PDF receipt of a sale
// @Tags         sales
// @Produce      application/pdf
// @Security     BearerAuth
// @Param        id path string true "Sale id"
// @Success      200
// @Failure      404  {object} apierror.APIError
// @Router       /v1/sales/{id}/receipt [get]
func (h *SalesHandler) Receipt(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := h.svc.Receipt(c.Request.Context(), id, &buf); err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="receipt_%s.pdf"`, id))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}
