package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"farmapos/internal/config"
	"farmapos/internal/infra"
	"farmapos/internal/model"
	"farmapos/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ── Test database ─────────────────────────────────────────────────────────────

// newTestDB opens a private in-memory SQLite database with the full schema.
// A single connection serialises transactions the way row locks would.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, infra.AutoMigrate(db))
	return db
}

// recordingPublisher keeps published events in memory.
type recordingPublisher struct {
	mu     sync.Mutex
	events []infra.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e infra.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) ofType(typ string) []infra.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []infra.Event
	for _, e := range p.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// ── Fixture ───────────────────────────────────────────────────────────────────

type fixture struct {
	db       *gorm.DB
	events   *recordingPublisher
	products ProductService
	sales    SaleService
	users    UserService
	auth     AuthService
	audit    AuditService
	reports  ReportService

	admin     Actor
	attendant Actor
}

const testSecret = "test-secret-key"

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	events := &recordingPublisher{}

	userRepo := repository.NewUserRepository(db)
	productRepo := repository.NewProductRepository(db)
	saleRepo := repository.NewSaleRepository(db)
	movementRepo := repository.NewStockMovementRepository(db)

	audit := NewAuditService(repository.NewAuditLogRepository(db), events)
	products := NewProductService(productRepo, movementRepo, audit, nil)
	f := &fixture{
		db:       db,
		events:   events,
		products: products,
		sales:    NewSaleService(saleRepo, productRepo, movementRepo, products, nil, events, "Farmacia Teste"),
		users:    NewUserService(userRepo, audit),
		auth: NewAuthService(userRepo, &config.Config{
			JWTSecret:          testSecret,
			JWTExpirationHours: 8,
			JWTRefreshHours:    24,
		}),
		audit:   audit,
		reports: NewReportService(repository.NewReportRepository(db), saleRepo, movementRepo),
	}
	f.admin = f.seedUser(t, "Admin", "admin@test.local", model.RoleAdmin)
	f.attendant = f.seedUser(t, "Ana", "ana@test.local", model.RoleAttendant)
	return f
}

const seedPassword = "Secr3t!pass"

func (f *fixture) seedUser(t *testing.T, name, email string, role model.Role) Actor {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.MinCost)
	require.NoError(t, err)
	u := &model.User{Name: name, Email: email, PasswordHash: string(hash), Role: role}
	require.NoError(t, f.db.Create(u).Error)
	return Actor{ID: u.ID, Name: u.Name, Role: u.Role}
}

type productOpt func(*model.Product)

func withBarcode(code string) productOpt { return func(p *model.Product) { p.Barcode = &code } }
func withCategory(c string) productOpt   { return func(p *model.Product) { p.Category = c } }
func withMinStock(n int) productOpt      { return func(p *model.Product) { p.MinStockQuantity = n } }
func withPurchasePrice(v int64) productOpt {
	return func(p *model.Product) { p.PurchasePrice = decimal.NewFromInt(v) }
}
func withExpiry(d time.Time) productOpt { return func(p *model.Product) { p.ExpiryDate = d } }

func (f *fixture) seedProduct(t *testing.T, name string, price int64, stock int, opts ...productOpt) model.Product {
	t.Helper()
	p := model.Product{
		Name:          name,
		Category:      "Analgesic",
		PurchasePrice: decimal.NewFromInt(price / 2),
		SellingPrice:  decimal.NewFromInt(price),
		StockQuantity: stock,
		ExpiryDate:    time.Now().UTC().AddDate(1, 0, 0),
	}
	for _, o := range opts {
		o(&p)
	}
	require.NoError(t, f.db.Create(&p).Error)
	return p
}

func (f *fixture) stockOf(t *testing.T, id uuid.UUID) int {
	t.Helper()
	var p model.Product
	require.NoError(t, f.db.First(&p, "id = ?", id).Error)
	return p.StockQuantity
}

func (f *fixture) count(t *testing.T, m interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(m).Count(&n).Error)
	return n
}

func ptr[T any](v T) *T { return &v }
