// Package policy holds the single table deciding which roles may perform
// which operation. Route handlers never compare roles themselves.
package policy

import (
	"sort"

	"farmapos/internal/model"
)

// Operation names an authorizable action.
type Operation string

const (
	SaleCreate Operation = "sale.create"
	SaleRead   Operation = "sale.read"
	SaleList   Operation = "sale.list"

	ProductList   Operation = "product.list"
	ProductRead   Operation = "product.read"
	ProductLookup Operation = "product.lookup"
	ProductCreate Operation = "product.create"
	ProductUpdate Operation = "product.update"
	ProductDelete Operation = "product.delete"

	UserList       Operation = "user.list"
	UserCreate     Operation = "user.create"
	UserUpdate     Operation = "user.update"
	UserDeactivate Operation = "user.deactivate"
	UserReactivate Operation = "user.reactivate"

	LogList Operation = "log.list"

	ReportSales                Operation = "report.sales"
	ReportMySales              Operation = "report.my_sales"
	ReportStockAlerts          Operation = "report.stock_alerts"
	ReportStockDashboard       Operation = "report.stock_dashboard"
	ReportMostSold             Operation = "report.most_sold"
	ReportSalesByCategory      Operation = "report.sales_by_category"
	ReportRecentStockMovements Operation = "report.recent_stock_movements"
	ReportStockMovements       Operation = "report.stock_movements"
)

var (
	adminOnly     = []model.Role{model.RoleAdmin}
	counter       = []model.Role{model.RoleAdmin, model.RoleAttendant}
	stockroom     = []model.Role{model.RoleAdmin, model.RoleStockist}
	everyoneStaff = []model.Role{model.RoleAdmin, model.RoleStockist, model.RoleAttendant}
)

// Table maps every operation to the roles allowed to perform it.
type Table map[Operation][]model.Role

// Default is the production policy.
func Default() Table {
	return Table{
		SaleCreate:    counter,
		SaleRead:      counter,
		ReportMySales: counter,

		ProductList:                everyoneStaff,
		ProductRead:                everyoneStaff,
		ProductLookup:              everyoneStaff,
		ReportMostSold:             everyoneStaff,
		ReportSalesByCategory:      everyoneStaff,
		ReportRecentStockMovements: everyoneStaff,
		ReportStockDashboard:       everyoneStaff,

		ProductCreate:        stockroom,
		ProductUpdate:        stockroom,
		ProductDelete:        stockroom,
		ReportStockMovements: stockroom,

		UserList:          adminOnly,
		UserCreate:        adminOnly,
		UserUpdate:        adminOnly,
		UserDeactivate:    adminOnly,
		UserReactivate:    adminOnly,
		LogList:           adminOnly,
		ReportSales:       adminOnly,
		ReportStockAlerts: adminOnly,
		SaleList:          adminOnly,
	}
}

// Gate answers authorization questions against a Table.
type Gate struct {
	allowed map[Operation]map[model.Role]bool
}

func NewGate(t Table) *Gate {
	g := &Gate{allowed: make(map[Operation]map[model.Role]bool, len(t))}
	for op, roles := range t {
		set := make(map[model.Role]bool, len(roles))
		for _, r := range roles {
			set[r] = true
		}
		g.allowed[op] = set
	}
	return g
}

// Authorize reports whether role may perform op. Unknown operations are denied.
func (g *Gate) Authorize(role model.Role, op Operation) bool {
	return g.allowed[op][role]
}

// Operations lists the operations known to the gate, sorted.
func (g *Gate) Operations() []Operation {
	ops := make([]Operation, 0, len(g.allowed))
	for op := range g.allowed {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}
