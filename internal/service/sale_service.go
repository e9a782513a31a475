package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"farmapos/internal/dto"
	"farmapos/internal/infra"
	"farmapos/internal/model"
	"farmapos/internal/repository"
	"farmapos/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type SaleService interface {
	Checkout(ctx context.Context, actor Actor, req dto.CheckoutRequest) (*dto.SaleResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*dto.SaleResponse, error)
	List(ctx context.Context, filter dto.SaleFilter) (*dto.SaleListResponse, error)
	// Receipt writes the PDF receipt of sale id to w.
	Receipt(ctx context.Context, id uuid.UUID, w io.Writer) error
}

type saleService struct {
	repo         repository.SaleRepository
	productRepo  repository.ProductRepository
	movementRepo repository.StockMovementRepository
	products     ProductService
	dispatcher   *worker.Dispatcher
	events       infra.EventPublisher
	pharmacyName string
}

func NewSaleService(
	repo repository.SaleRepository,
	productRepo repository.ProductRepository,
	movementRepo repository.StockMovementRepository,
	products ProductService,
	dispatcher *worker.Dispatcher,
	events infra.EventPublisher,
	pharmacyName string,
) SaleService {
	return &saleService{
		repo:         repo,
		productRepo:  productRepo,
		movementRepo: movementRepo,
		products:     products,
		dispatcher:   dispatcher,
		events:       events,
		pharmacyName: pharmacyName,
	}
}

type cartLine struct {
	productID uuid.UUID
	quantity  int
}

// ── Checkout ──────────────────────────────────────────────────────────────────
// One transaction per sale:
//   1. Lock every cart product (SELECT ... FOR UPDATE)
//   2. Reject unknown ids and insufficient stock before writing anything
//   3. Price each line from the current selling price
//   4. Insert the sale, then per line: item, guarded decrement, SALE movement
//   5. Re-read the sale with items and attendant for the response
// Any failure rolls back the whole unit. Side effects (cache, events, receipt
// job) run only after commit.

func (s *saleService) Checkout(ctx context.Context, actor Actor, req dto.CheckoutRequest) (*dto.SaleResponse, error) {
	lines, err := parseCart(req)
	if err != nil {
		return nil, err
	}

	var key *string
	if req.IdempotencyKey != nil {
		if k := strings.TrimSpace(*req.IdempotencyKey); k != "" {
			key = &k
		}
	}
	if key != nil {
		if existing, err := s.repo.FindByIdempotencyKey(ctx, actor.ID, *key); err == nil {
			return replayed(existing), nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	discount := decimal.Zero
	if dto.InMoneyRange(req.Discount.Decimal) && req.Discount.IsPositive() {
		discount = req.Discount.Decimal.Round(2)
	}

	var sale *model.Sale
	var sold []model.Product
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		ids := make([]uuid.UUID, len(lines))
		for i, l := range lines {
			ids[i] = l.productID
		}
		products, err := s.productRepo.FindByIDsForUpdateTx(tx, ids)
		if err != nil {
			return err
		}
		byID := make(map[uuid.UUID]model.Product, len(products))
		for _, p := range products {
			byID[p.ID] = p
		}

		subtotal := decimal.Zero
		for _, l := range lines {
			p, ok := byID[l.productID]
			if !ok {
				return newError(ErrNotFound, "product not found: %s", l.productID)
			}
			if p.StockQuantity < l.quantity {
				return newError(ErrInsufficientStock, "insufficient stock for %s", p.Name)
			}
			subtotal = subtotal.Add(p.SellingPrice.Mul(decimal.NewFromInt(int64(l.quantity))))
		}
		if !dto.InMoneyRange(subtotal) {
			return &ValidationError{Fields: map[string]string{"cart": "cart total exceeds the maximum sale amount"}}
		}
		// The stored discount never exceeds what it can take off.
		if discount.GreaterThan(subtotal) {
			discount = subtotal
		}

		row := &model.Sale{
			Total:          model.SaleTotal(subtotal, discount),
			Discount:       discount,
			PaymentMethod:  req.PaymentMethod,
			AttendantID:    actor.ID,
			IdempotencyKey: key,
		}
		if err := s.repo.CreateTx(tx, row); err != nil {
			return err
		}

		for _, l := range lines {
			p := byID[l.productID]
			item := &model.SaleItem{
				SaleID:      row.ID,
				ProductID:   p.ID,
				Quantity:    l.quantity,
				PriceAtSale: p.SellingPrice,
			}
			if err := s.repo.CreateItemTx(tx, item); err != nil {
				return err
			}

			ok, err := s.productRepo.DecrementStockTx(tx, p.ID, l.quantity)
			if err != nil {
				return err
			}
			if !ok {
				return newError(ErrInsufficientStock, "insufficient stock for %s", p.Name)
			}

			ref := row.ID
			mov := &model.StockMovement{
				ProductID:      p.ID,
				Kind:           model.MovementSale,
				QuantityChange: -l.quantity,
				PreviousStock:  p.StockQuantity,
				NewStock:       p.StockQuantity - l.quantity,
				Reason:         fmt.Sprintf("Sale #%s", row.ID),
				UserID:         actor.ID,
				ReferenceID:    &ref,
			}
			if err := s.movementRepo.CreateTx(tx, mov); err != nil {
				return err
			}
			sold = append(sold, p)
		}

		sale, err = s.repo.FindByIDTx(tx, row.ID)
		return err
	})
	if txErr != nil {
		// A concurrent request with the same key won the unique index.
		if key != nil && errors.Is(txErr, gorm.ErrDuplicatedKey) {
			if existing, err := s.repo.FindByIdempotencyKey(ctx, actor.ID, *key); err == nil {
				return replayed(existing), nil
			}
		}
		return nil, txErr
	}

	s.afterCheckout(ctx, sale, sold, req.CustomerEmail)
	return toSaleResponse(sale), nil
}

func parseCart(req dto.CheckoutRequest) ([]cartLine, error) {
	fe := fieldErrors{}
	if len(req.Cart) == 0 {
		fe.add("cart", "cart must contain at least one item")
	}
	if req.PaymentMethod == "" {
		fe.add("paymentMethod", "paymentMethod is required")
	} else if !validPaymentMethod(req.PaymentMethod) {
		fe.add("paymentMethod", "paymentMethod must be one of dinheiro, pos, transferencia")
	}

	lines := make([]cartLine, 0, len(req.Cart))
	seen := make(map[uuid.UUID]bool, len(req.Cart))
	for i, item := range req.Cart {
		id, err := uuid.Parse(item.ID)
		if err != nil {
			fe.add(fmt.Sprintf("cart[%d].id", i), "id must be a valid product id")
			continue
		}
		if item.Quantity < 1 {
			fe.add(fmt.Sprintf("cart[%d].quantity", i), "quantity must be at least 1")
			continue
		}
		if seen[id] {
			fe.add("cart", "cart must not contain the same product twice")
			continue
		}
		seen[id] = true
		lines = append(lines, cartLine{productID: id, quantity: item.Quantity})
	}
	if err := fe.err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func validPaymentMethod(m string) bool {
	for _, pm := range model.PaymentMethods {
		if m == pm {
			return true
		}
	}
	return false
}

func (s *saleService) afterCheckout(ctx context.Context, sale *model.Sale, sold []model.Product, customerEmail *string) {
	s.products.InvalidateLookup(ctx, sold...)

	publish(ctx, s.events, infra.Event{
		Type:    infra.EventSaleCompleted,
		Key:     sale.ID.String(),
		Payload: toSaleResponse(sale),
	})

	if customerEmail != nil && *customerEmail != "" {
		err := s.dispatcher.EnqueueReceipt(ctx, worker.ReceiptJobPayload{
			SaleID:        sale.ID.String(),
			CustomerEmail: customerEmail,
		})
		if err != nil {
			log.Warn().Err(err).Str("sale_id", sale.ID.String()).Msg("receipt job enqueue failed")
		}
	}
}

func replayed(sale *model.Sale) *dto.SaleResponse {
	resp := toSaleResponse(sale)
	resp.Replayed = true
	return resp
}

// ── Queries ───────────────────────────────────────────────────────────────────

func (s *saleService) Get(ctx context.Context, id uuid.UUID) (*dto.SaleResponse, error) {
	sale, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return toSaleResponse(sale), nil
}

func (s *saleService) List(ctx context.Context, filter dto.SaleFilter) (*dto.SaleListResponse, error) {
	from, to, err := parseDateRange(filter.From, filter.To)
	if err != nil {
		return nil, err
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 50
	}
	q := repository.SaleQuery{From: from, To: to, Page: filter.Page, Limit: filter.Limit}
	if filter.AttendantID != "" {
		aid, err := uuid.Parse(filter.AttendantID)
		if err != nil {
			return nil, &ValidationError{Fields: map[string]string{"attendantId": "attendantId must be a valid user id"}}
		}
		q.AttendantID = &aid
	}

	sales, total, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, err
	}
	resp := &dto.SaleListResponse{
		Data:  make([]dto.SaleResponse, len(sales)),
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	}
	for i := range sales {
		resp.Data[i] = *toSaleResponse(&sales[i])
	}
	return resp, nil
}

func (s *saleService) Receipt(ctx context.Context, id uuid.UUID, w io.Writer) error {
	sale, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	return infra.RenderReceipt(w, sale, s.pharmacyName)
}

func (s *saleService) find(ctx context.Context, id uuid.UUID) (*model.Sale, error) {
	sale, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, newError(ErrNotFound, "sale not found")
	}
	return sale, err
}

func toSaleResponse(s *model.Sale) *dto.SaleResponse {
	resp := &dto.SaleResponse{
		ID:            s.ID.String(),
		CreatedAt:     s.CreatedAt,
		Subtotal:      s.Subtotal(),
		Discount:      s.Discount,
		Total:         s.Total,
		PaymentMethod: s.PaymentMethod,
		Attendant:     dto.AttendantRef{ID: s.AttendantID.String()},
		Items:         make([]dto.SaleItemResponse, len(s.Items)),
	}
	if s.Attendant != nil {
		resp.Attendant.Name = s.Attendant.Name
	}
	for i := range s.Items {
		it := &s.Items[i]
		resp.Items[i] = dto.SaleItemResponse{
			ID:          it.ID.String(),
			ProductID:   it.ProductID.String(),
			Quantity:    it.Quantity,
			PriceAtSale: it.PriceAtSale,
			LineTotal:   it.LineTotal(),
		}
		if it.Product != nil {
			resp.Items[i].ProductName = it.Product.Name
		}
	}
	return resp
}
