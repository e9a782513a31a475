package service

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"farmapos/internal/dto"
	"farmapos/internal/infra"
	"farmapos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkoutReq(discount int64, lines ...dto.CartItemRequest) dto.CheckoutRequest {
	return dto.CheckoutRequest{
		Cart:          lines,
		Discount:      dto.LenientDecimal{Decimal: decimal.NewFromInt(discount)},
		PaymentMethod: model.PaymentCash,
	}
}

func line(p model.Product, qty int) dto.CartItemRequest {
	return dto.CartItemRequest{ID: p.ID.String(), Quantity: qty}
}

func TestCheckout_PricesFromCatalogAndDecrementsStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProduct(t, "Dipirona 500mg", 100, 5)

	resp, err := f.sales.Checkout(ctx, f.attendant, checkoutReq(50, line(p, 2)))
	require.NoError(t, err)

	assert.True(t, decimal.NewFromInt(200).Equal(resp.Subtotal), "subtotal %s", resp.Subtotal)
	assert.True(t, decimal.NewFromInt(50).Equal(resp.Discount))
	assert.True(t, decimal.NewFromInt(150).Equal(resp.Total), "total %s", resp.Total)
	assert.Equal(t, f.attendant.ID.String(), resp.Attendant.ID)
	assert.False(t, resp.Replayed)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "Dipirona 500mg", resp.Items[0].ProductName)
	assert.True(t, decimal.NewFromInt(100).Equal(resp.Items[0].PriceAtSale))

	assert.Equal(t, 3, f.stockOf(t, p.ID))

	var movements []model.StockMovement
	require.NoError(t, f.db.Where("product_id = ?", p.ID).Find(&movements).Error)
	require.Len(t, movements, 1)
	m := movements[0]
	assert.Equal(t, model.MovementSale, m.Kind)
	assert.Equal(t, -2, m.QuantityChange)
	assert.Equal(t, 5, m.PreviousStock)
	assert.Equal(t, 3, m.NewStock)
	assert.Equal(t, "Sale #"+resp.ID, m.Reason)
	require.NotNil(t, m.ReferenceID)
	assert.Equal(t, resp.ID, m.ReferenceID.String())
	assert.Equal(t, f.attendant.ID, m.UserID)

	completed := f.events.ofType(infra.EventSaleCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, resp.ID, completed[0].Key)
}

func TestCheckout_IgnoresClientPricesAndSumsLines(t *testing.T) {
	f := newFixture(t)
	a := f.seedProduct(t, "Soro", 7, 10)
	b := f.seedProduct(t, "Gaze", 3, 10)

	resp, err := f.sales.Checkout(context.Background(), f.attendant, checkoutReq(0, line(a, 3), line(b, 4)))
	require.NoError(t, err)

	assert.True(t, decimal.NewFromInt(33).Equal(resp.Total), "total %s", resp.Total)
	assert.Len(t, resp.Items, 2)
	assert.Equal(t, 7, f.stockOf(t, a.ID))
	assert.Equal(t, 6, f.stockOf(t, b.ID))
}

func TestCheckout_DiscountLargerThanSubtotalFloorsAtZero(t *testing.T) {
	f := newFixture(t)
	p := f.seedProduct(t, "Vitamina C", 10, 5)

	resp, err := f.sales.Checkout(context.Background(), f.attendant, checkoutReq(1000, line(p, 1)))
	require.NoError(t, err)
	assert.True(t, resp.Total.IsZero(), "total %s", resp.Total)
	assert.True(t, decimal.NewFromInt(10).Equal(resp.Discount), "discount is capped at the subtotal, got %s", resp.Discount)
}

func TestCheckout_OutOfRangeDiscountIsIgnored(t *testing.T) {
	f := newFixture(t)
	p := f.seedProduct(t, "Vitamina C", 10, 5)

	for _, d := range []string{"1e30000000", "1e-30000000", "10000000000"} {
		req := checkoutReq(0, line(p, 1))
		req.Discount = dto.LenientDecimal{Decimal: decimal.RequireFromString(d)}
		resp, err := f.sales.Checkout(context.Background(), f.attendant, req)
		require.NoError(t, err, d)
		assert.True(t, resp.Discount.IsZero(), d)
		assert.True(t, decimal.NewFromInt(10).Equal(resp.Total), d)
	}
}

func TestCheckout_InsufficientStockPersistsNothing(t *testing.T) {
	f := newFixture(t)
	ok := f.seedProduct(t, "Paracetamol", 20, 50)
	short := f.seedProduct(t, "Dipirona 500mg", 100, 5)

	_, err := f.sales.Checkout(context.Background(), f.attendant, checkoutReq(0, line(ok, 1), line(short, 10)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientStock))
	assert.Contains(t, err.Error(), "Dipirona 500mg")

	assert.Equal(t, 50, f.stockOf(t, ok.ID))
	assert.Equal(t, 5, f.stockOf(t, short.ID))
	assert.Zero(t, f.count(t, &model.Sale{}))
	assert.Zero(t, f.count(t, &model.SaleItem{}))
	assert.Zero(t, f.count(t, &model.StockMovement{}))
	assert.Empty(t, f.events.ofType(infra.EventSaleCompleted))
}

func TestCheckout_UnknownProduct(t *testing.T) {
	f := newFixture(t)
	p := f.seedProduct(t, "Paracetamol", 20, 50)
	missing := uuid.New()

	_, err := f.sales.Checkout(context.Background(), f.attendant, checkoutReq(0,
		line(p, 1), dto.CartItemRequest{ID: missing.String(), Quantity: 1}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), missing.String())

	assert.Equal(t, 50, f.stockOf(t, p.ID))
	assert.Zero(t, f.count(t, &model.Sale{}))
}

func TestCheckout_RejectsMalformedCart(t *testing.T) {
	f := newFixture(t)
	p := f.seedProduct(t, "Paracetamol", 20, 50)

	cases := map[string]struct {
		req   dto.CheckoutRequest
		field string
	}{
		"empty cart":        {req: checkoutReq(0), field: "cart"},
		"duplicate product": {req: checkoutReq(0, line(p, 1), line(p, 2)), field: "cart"},
		"zero quantity":     {req: checkoutReq(0, line(p, 0)), field: "cart[0].quantity"},
		"bad id":            {req: checkoutReq(0, dto.CartItemRequest{ID: "nope", Quantity: 1}), field: "cart[0].id"},
		"bad payment": {
			req:   dto.CheckoutRequest{Cart: []dto.CartItemRequest{line(p, 1)}, PaymentMethod: "cheque"},
			field: "paymentMethod",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.sales.Checkout(context.Background(), f.attendant, tc.req)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Fields, tc.field)
		})
	}
	assert.Equal(t, 50, f.stockOf(t, p.ID))
	assert.Zero(t, f.count(t, &model.Sale{}))
}

func TestCheckout_IdempotencyKeyReplaysOriginalSale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProduct(t, "Dipirona 500mg", 100, 5)

	req := checkoutReq(0, line(p, 2))
	req.IdempotencyKey = ptr("till-1-0001")

	first, err := f.sales.Checkout(ctx, f.attendant, req)
	require.NoError(t, err)
	second, err := f.sales.Checkout(ctx, f.attendant, req)
	require.NoError(t, err)

	assert.False(t, first.Replayed)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, first.Total.Equal(second.Total))

	assert.Equal(t, 3, f.stockOf(t, p.ID))
	assert.EqualValues(t, 1, f.count(t, &model.Sale{}))
	assert.EqualValues(t, 1, f.count(t, &model.StockMovement{}))
	assert.Len(t, f.events.ofType(infra.EventSaleCompleted), 1)
}

func TestCheckout_IdempotencyKeyIsScopedToAttendant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProduct(t, "Dipirona 500mg", 100, 5)

	req := checkoutReq(0, line(p, 1))
	req.IdempotencyKey = ptr("till-1-0001")

	mine, err := f.sales.Checkout(ctx, f.attendant, req)
	require.NoError(t, err)
	theirs, err := f.sales.Checkout(ctx, f.admin, req)
	require.NoError(t, err)

	assert.NotEqual(t, mine.ID, theirs.ID)
	assert.False(t, theirs.Replayed)
	assert.Equal(t, f.admin.ID.String(), theirs.Attendant.ID)
	assert.Equal(t, 3, f.stockOf(t, p.ID))

	again, err := f.sales.Checkout(ctx, f.admin, req)
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, theirs.ID, again.ID)
}

func TestCheckout_ConcurrentSalesNeverOversell(t *testing.T) {
	f := newFixture(t)
	p := f.seedProduct(t, "Insulina", 80, 1)

	const buyers = 4
	var wg sync.WaitGroup
	errs := make([]error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.sales.Checkout(context.Background(), f.attendant, checkoutReq(0, line(p, 1)))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, ErrInsufficientStock), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 0, f.stockOf(t, p.ID))
	assert.EqualValues(t, 1, f.count(t, &model.StockMovement{}))
}

func TestSaleQueries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.seedProduct(t, "Dipirona 500mg", 100, 50)

	mine, err := f.sales.Checkout(ctx, f.attendant, checkoutReq(0, line(p, 1)))
	require.NoError(t, err)
	_, err = f.sales.Checkout(ctx, f.admin, checkoutReq(0, line(p, 2)))
	require.NoError(t, err)

	t.Run("get", func(t *testing.T) {
		got, err := f.sales.Get(ctx, uuid.MustParse(mine.ID))
		require.NoError(t, err)
		assert.Equal(t, "Ana", got.Attendant.Name)
		assert.Len(t, got.Items, 1)
	})

	t.Run("get unknown", func(t *testing.T) {
		_, err := f.sales.Get(ctx, uuid.New())
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("list all", func(t *testing.T) {
		list, err := f.sales.List(ctx, dto.SaleFilter{})
		require.NoError(t, err)
		assert.EqualValues(t, 2, list.Total)
		assert.Len(t, list.Data, 2)
	})

	t.Run("list by attendant", func(t *testing.T) {
		list, err := f.sales.List(ctx, dto.SaleFilter{AttendantID: f.attendant.ID.String()})
		require.NoError(t, err)
		require.Len(t, list.Data, 1)
		assert.Equal(t, mine.ID, list.Data[0].ID)
	})

	t.Run("list with inverted range", func(t *testing.T) {
		_, err := f.sales.List(ctx, dto.SaleFilter{From: "2026-02-01", To: "2026-01-01"})
		var ve *ValidationError
		assert.ErrorAs(t, err, &ve)
	})

	t.Run("receipt", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, f.sales.Receipt(ctx, uuid.MustParse(mine.ID), &buf))
		assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
	})
}
