package policy

import (
	"testing"

	"farmapos/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPolicy(t *testing.T) {
	g := NewGate(Default())

	cases := []struct {
		op        Operation
		admin     bool
		stockist  bool
		attendant bool
	}{
		{SaleCreate, true, false, true},
		{SaleRead, true, false, true},
		{SaleList, true, false, false},
		{ProductList, true, true, true},
		{ProductLookup, true, true, true},
		{ProductCreate, true, true, false},
		{ProductUpdate, true, true, false},
		{ProductDelete, true, true, false},
		{UserCreate, true, false, false},
		{UserDeactivate, true, false, false},
		{LogList, true, false, false},
		{ReportSales, true, false, false},
		{ReportMySales, true, false, true},
		{ReportStockMovements, true, true, false},
		{ReportMostSold, true, true, true},
	}
	for _, tc := range cases {
		t.Run(string(tc.op), func(t *testing.T) {
			assert.Equal(t, tc.admin, g.Authorize(model.RoleAdmin, tc.op))
			assert.Equal(t, tc.stockist, g.Authorize(model.RoleStockist, tc.op))
			assert.Equal(t, tc.attendant, g.Authorize(model.RoleAttendant, tc.op))
		})
	}
}

func TestGateDeniesUnknown(t *testing.T) {
	g := NewGate(Default())
	assert.False(t, g.Authorize(model.RoleAdmin, Operation("sale.refund")))
	assert.False(t, g.Authorize(model.Role("ROOT"), SaleCreate))
}

func TestAdminCanDoEverything(t *testing.T) {
	g := NewGate(Default())
	ops := g.Operations()
	assert.NotEmpty(t, ops)
	for _, op := range ops {
		assert.True(t, g.Authorize(model.RoleAdmin, op), op)
	}
}
