package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"farmapos/internal/infra"
	"farmapos/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ReceiptJobPayload is the job envelope sent to QueueReceipt.
type ReceiptJobPayload struct {
	SaleID        string  `json:"saleId"`
	CustomerEmail *string `json:"customerEmail,omitempty"`
}

// SaleLoader loads a sale with items, products and attendant.
type SaleLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Sale, error)
}

// ReceiptWorker renders the PDF receipt of a completed sale to disk and,
// when the customer left an address, enqueues an email job with it.
type ReceiptWorker struct {
	sales        SaleLoader
	dispatcher   *Dispatcher
	storagePath  string
	pharmacyName string
}

func NewReceiptWorker(sales SaleLoader, dispatcher *Dispatcher, storagePath, pharmacyName string) *ReceiptWorker {
	return &ReceiptWorker{
		sales:        sales,
		dispatcher:   dispatcher,
		storagePath:  storagePath,
		pharmacyName: pharmacyName,
	}
}

// Process renders the receipt for one sale.
func (w *ReceiptWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload ReceiptJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return permanent("receipt_worker: invalid payload: %v", err)
	}
	saleID, err := uuid.Parse(payload.SaleID)
	if err != nil {
		return permanent("receipt_worker: invalid sale id %q", payload.SaleID)
	}

	sale, err := w.sales.FindByID(ctx, saleID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return permanent("receipt_worker: sale %s not found", saleID)
	}
	if err != nil {
		return fmt.Errorf("receipt_worker: load sale: %w", err)
	}

	path, err := infra.WriteReceiptFile(sale, w.storagePath, w.pharmacyName)
	if err != nil {
		return err
	}
	log.Info().Str("sale_id", saleID.String()).Str("path", path).Msg("receipt_worker: receipt written")

	if payload.CustomerEmail == nil || *payload.CustomerEmail == "" {
		return nil
	}
	return w.dispatcher.EnqueueEmail(ctx, EmailJobPayload{
		ToEmail: *payload.CustomerEmail,
		Subject: fmt.Sprintf("%s - receipt %s", w.pharmacyName, saleID.String()[:8]),
		Body:    "Thank you for your purchase. Your receipt is attached.",
		PDFPath: path,
	})
}
