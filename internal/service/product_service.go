package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"farmapos/internal/dto"
	"farmapos/internal/infra"
	"farmapos/internal/model"
	"farmapos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ProductService interface {
	Create(ctx context.Context, actor Actor, req dto.CreateProductRequest) (*model.Product, error)
	Update(ctx context.Context, actor Actor, id uuid.UUID, req dto.UpdateProductRequest) (*model.Product, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Product, error)
	List(ctx context.Context, filter dto.ProductFilter) (*dto.ProductListResponse, error)
	LookupBarcode(ctx context.Context, barcode string) (*dto.ProductLookupResponse, error)
	Delete(ctx context.Context, actor Actor, id uuid.UUID) error
	// InvalidateLookup drops cached barcode lookups of products whose stock or price changed.
	InvalidateLookup(ctx context.Context, products ...model.Product)
}

type productService struct {
	repo         repository.ProductRepository
	movementRepo repository.StockMovementRepository
	audit        AuditService
	cache        *infra.Cache
	now          func() time.Time
}

func NewProductService(
	repo repository.ProductRepository,
	movementRepo repository.StockMovementRepository,
	audit AuditService,
	cache *infra.Cache,
) ProductService {
	return &productService{
		repo:         repo,
		movementRepo: movementRepo,
		audit:        audit,
		cache:        cache,
		now:          time.Now,
	}
}

// ── Create ────────────────────────────────────────────────────────────────────

func (s *productService) Create(ctx context.Context, actor Actor, req dto.CreateProductRequest) (*model.Product, error) {
	if err := checkPrices(&req.PurchasePrice, &req.SellingPrice); err != nil {
		return nil, err
	}
	p := &model.Product{
		Name:          strings.TrimSpace(req.Name),
		Category:      strings.TrimSpace(req.Category),
		Dosage:        trimmedOrNil(req.Dosage),
		Manufacturer:  trimmedOrNil(req.Manufacturer),
		PurchasePrice: req.PurchasePrice.Round(2),
		SellingPrice:  req.SellingPrice.Round(2),
		ExpiryDate:    req.ExpiryDate.UTC(),
		Barcode:       trimmedOrNil(req.Barcode),
	}
	if req.StockQuantity != nil {
		p.StockQuantity = *req.StockQuantity
	}
	if req.MinStockQuantity != nil {
		p.MinStockQuantity = *req.MinStockQuantity
	}

	fe := fieldErrors{}
	s.checkFields(fe, p, true, true, true)
	if err := fe.err(); err != nil {
		return nil, err
	}

	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		if p.Barcode != nil {
			taken, err := s.repo.BarcodeTakenTx(tx, *p.Barcode, uuid.Nil)
			if err != nil {
				return err
			}
			if taken {
				return newError(ErrConflict, "barcode already in use")
			}
		}
		return s.repo.CreateTx(tx, p)
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, newError(ErrConflict, "barcode already in use")
	}
	if err != nil {
		return nil, err
	}
	log.Info().Str("product_id", p.ID.String()).Str("actor", actor.ID.String()).Msg("product created")
	return p, nil
}

// ── Update (inventory adjustment) ─────────────────────────────────────────────
// Sparse: only supplied fields are validated and applied. Cross-field rules
// are checked against the merged product when either side was supplied.
// A stock change writes one ADJUSTMENT movement before the product row.

func (s *productService) Update(ctx context.Context, actor Actor, id uuid.UUID, req dto.UpdateProductRequest) (*model.Product, error) {
	if err := checkPrices(req.PurchasePrice, req.SellingPrice); err != nil {
		return nil, err
	}

	var updated *model.Product
	var oldBarcode *string

	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		locked, err := s.repo.FindByIDsForUpdateTx(tx, []uuid.UUID{id})
		if err != nil {
			return err
		}
		if len(locked) == 0 {
			return newError(ErrNotFound, "product not found")
		}
		p := locked[0]
		oldBarcode = p.Barcode
		prevStock := p.StockQuantity

		priceTouched, stockTouched := applyProductUpdate(&p, req)

		fe := fieldErrors{}
		s.checkFields(fe, &p, priceTouched, stockTouched, req.ExpiryDate != nil)
		if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
			fe.add("name", "name is required")
		}
		if req.Category != nil && strings.TrimSpace(*req.Category) == "" {
			fe.add("category", "category is required")
		}
		if err := fe.err(); err != nil {
			return err
		}

		if req.Barcode != nil && p.Barcode != nil && !sameString(oldBarcode, p.Barcode) {
			taken, err := s.repo.BarcodeTakenTx(tx, *p.Barcode, p.ID)
			if err != nil {
				return err
			}
			if taken {
				return newError(ErrConflict, "barcode already in use")
			}
		}

		if p.StockQuantity != prevStock {
			mov := &model.StockMovement{
				ProductID:      p.ID,
				Kind:           model.MovementAdjustment,
				QuantityChange: p.StockQuantity - prevStock,
				PreviousStock:  prevStock,
				NewStock:       p.StockQuantity,
				Reason:         model.ReasonManualAdjustment,
				UserID:         actor.ID,
			}
			if err := s.movementRepo.CreateTx(tx, mov); err != nil {
				return err
			}
		}

		if err := s.repo.SaveTx(tx, &p); err != nil {
			return err
		}
		updated = &p
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, newError(ErrConflict, "barcode already in use")
	}
	if err != nil {
		return nil, err
	}

	stale := []model.Product{*updated}
	if oldBarcode != nil && !sameString(oldBarcode, updated.Barcode) {
		stale = append(stale, model.Product{Barcode: oldBarcode})
	}
	s.InvalidateLookup(ctx, stale...)
	return updated, nil
}

// applyProductUpdate merges the supplied fields into p and reports whether a
// price or a stock field was supplied.
func applyProductUpdate(p *model.Product, req dto.UpdateProductRequest) (priceTouched, stockTouched bool) {
	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.Category != nil {
		p.Category = strings.TrimSpace(*req.Category)
	}
	if req.Dosage != nil {
		p.Dosage = trimmedOrNil(req.Dosage)
	}
	if req.Manufacturer != nil {
		p.Manufacturer = trimmedOrNil(req.Manufacturer)
	}
	if req.PurchasePrice != nil {
		p.PurchasePrice = req.PurchasePrice.Round(2)
		priceTouched = true
	}
	if req.SellingPrice != nil {
		p.SellingPrice = req.SellingPrice.Round(2)
		priceTouched = true
	}
	if req.StockQuantity != nil {
		p.StockQuantity = *req.StockQuantity
		stockTouched = true
	}
	if req.MinStockQuantity != nil {
		p.MinStockQuantity = *req.MinStockQuantity
		stockTouched = true
	}
	if req.ExpiryDate != nil {
		p.ExpiryDate = req.ExpiryDate.UTC()
	}
	if req.Barcode != nil {
		p.Barcode = trimmedOrNil(req.Barcode)
	}
	return priceTouched, stockTouched
}

// checkPrices rejects supplied prices that do not fit a money column. It
// runs before any rounding so oversized exponents are never expanded.
func checkPrices(purchase, selling *decimal.Decimal) error {
	fe := fieldErrors{}
	if purchase != nil && !dto.InMoneyRange(*purchase) {
		fe.add("purchasePrice", "purchasePrice must not exceed "+dto.MaxMoney.StringFixed(2))
	}
	if selling != nil && !dto.InMoneyRange(*selling) {
		fe.add("sellingPrice", "sellingPrice must not exceed "+dto.MaxMoney.StringFixed(2))
	}
	return fe.err()
}

// checkFields applies the business rules the validator tags cannot express.
func (s *productService) checkFields(fe fieldErrors, p *model.Product, prices, stock, expiry bool) {
	if prices {
		if !p.PurchasePrice.IsPositive() {
			fe.add("purchasePrice", "purchasePrice must be greater than 0")
		}
		if !p.SellingPrice.IsPositive() {
			fe.add("sellingPrice", "sellingPrice must be greater than 0")
		}
		if p.SellingPrice.LessThan(p.PurchasePrice) {
			fe.add("sellingPrice", "sellingPrice must be greater than or equal to purchasePrice")
		}
	}
	if stock {
		if p.StockQuantity < 0 {
			fe.add("stockQuantity", "stockQuantity must not be negative")
		}
		if p.MinStockQuantity < 0 {
			fe.add("minStockQuantity", "minStockQuantity must not be negative")
		}
		if p.MinStockQuantity > p.StockQuantity {
			fe.add("minStockQuantity", "minStockQuantity must not exceed stockQuantity")
		}
	}
	if expiry && !p.ExpiryDate.After(s.now()) {
		fe.add("expiryDate", "expiryDate must be in the future")
	}
}

// ── Queries ───────────────────────────────────────────────────────────────────

func (s *productService) Get(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	p, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, newError(ErrNotFound, "product not found")
	}
	return p, err
}

func (s *productService) List(ctx context.Context, filter dto.ProductFilter) (*dto.ProductListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 100
	}
	products, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &dto.ProductListResponse{
		Data:       products,
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: int(math.Ceil(float64(total) / float64(filter.Limit))),
	}, nil
}

// LookupBarcode serves the scanner at the counter; results are cached in Redis.
func (s *productService) LookupBarcode(ctx context.Context, barcode string) (*dto.ProductLookupResponse, error) {
	barcode = strings.TrimSpace(barcode)
	var cached dto.ProductLookupResponse
	if err := s.cache.Get(ctx, barcode, &cached); err == nil {
		return &cached, nil
	}

	p, err := s.repo.FindByBarcode(ctx, barcode)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, newError(ErrNotFound, "product not found")
	}
	if err != nil {
		return nil, err
	}
	resp := &dto.ProductLookupResponse{
		ID:            p.ID.String(),
		Name:          p.Name,
		Category:      p.Category,
		Dosage:        p.Dosage,
		SellingPrice:  p.SellingPrice,
		StockQuantity: p.StockQuantity,
		ExpiryDate:    p.ExpiryDate,
	}
	if err := s.cache.Set(ctx, barcode, resp); err != nil {
		log.Warn().Err(err).Str("barcode", barcode).Msg("barcode cache write failed")
	}
	return resp, nil
}

// ── Delete ────────────────────────────────────────────────────────────────────

func (s *productService) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
	var entry *model.AuditLog
	var deleted *model.Product
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		p, err := s.repo.FindByIDTx(tx, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newError(ErrNotFound, "product not found")
		}
		if err != nil {
			return err
		}

		n, err := s.repo.CountSaleItemsTx(tx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return newError(ErrProductInUse, "cannot delete a product that has been sold")
		}

		if err := s.movementRepo.DeleteByProductTx(tx, id); err != nil {
			return err
		}
		if err := s.repo.DeleteTx(tx, id); err != nil {
			return err
		}

		details := map[string]interface{}{"name": p.Name, "category": p.Category}
		if p.Barcode != nil {
			details["barcode"] = *p.Barcode
		}
		entry, err = s.audit.RecordTx(tx, actor, model.ActionProductDeleted, p.ID.String(), details)
		deleted = p
		return err
	})
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return newError(ErrProductInUse, "cannot delete a product that has been sold")
	}
	if err != nil {
		return err
	}
	s.InvalidateLookup(ctx, *deleted)
	s.audit.Publish(ctx, entry)
	return nil
}

func (s *productService) InvalidateLookup(ctx context.Context, products ...model.Product) {
	keys := make([]string, 0, len(products))
	for _, p := range products {
		if p.Barcode != nil && *p.Barcode != "" {
			keys = append(keys, *p.Barcode)
		}
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		log.Warn().Err(err).Msg("barcode cache invalidation failed")
	}
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
