package router

import (
	"time"

	"farmapos/internal/config"
	"farmapos/internal/handler"
	"farmapos/internal/infra"
	"farmapos/internal/middleware"
	"farmapos/internal/policy"
	"farmapos/internal/repository"
	"farmapos/internal/service"
	"farmapos/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// lookupTTL bounds how long a barcode lookup may be served from Redis.
const lookupTTL = 5 * time.Minute

// Deps carries the process-level infrastructure the router wires into services.
// Redis, Events and Dispatcher may be nil; the features backed by them degrade
// to no-ops.
type Deps struct {
	Config     *config.Config
	DB         *gorm.DB
	Redis      *redis.Client
	Events     infra.EventPublisher
	Dispatcher *worker.Dispatcher
	Policy     policy.Table
}

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(d Deps) *gin.Engine {
	cfg, db := d.Config, d.DB
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if d.Events == nil {
		d.Events = infra.NoopPublisher{}
	}
	if d.Policy == nil {
		d.Policy = policy.Default()
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	if cfg.RateLimitPerMinute > 0 {
		r.Use(middleware.RateLimiter(cfg.RateLimitPerMinute, time.Minute))
	}

	// ── Repositories ─────────────────────────────────────────────────────────
	userRepo := repository.NewUserRepository(db)
	productRepo := repository.NewProductRepository(db)
	saleRepo := repository.NewSaleRepository(db)
	movementRepo := repository.NewStockMovementRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)
	reportRepo := repository.NewReportRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	lookupCache := infra.NewCache(d.Redis, "product:barcode:", lookupTTL)

	auditSvc := service.NewAuditService(auditRepo, d.Events)
	authSvc := service.NewAuthService(userRepo, cfg)
	userSvc := service.NewUserService(userRepo, auditSvc)
	productSvc := service.NewProductService(productRepo, movementRepo, auditSvc, lookupCache)
	saleSvc := service.NewSaleService(saleRepo, productRepo, movementRepo, productSvc, d.Dispatcher, d.Events, cfg.PharmacyName)
	reportSvc := service.NewReportService(reportRepo, saleRepo, movementRepo)

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(authSvc)
	salesH := handler.NewSalesHandler(saleSvc)
	productsH := handler.NewProductsHandler(productSvc)
	usersH := handler.NewUsersHandler(userSvc)
	reportsH := handler.NewReportsHandler(reportSvc)
	logsH := handler.NewLogsHandler(auditSvc)

	// ── Routes ───────────────────────────────────────────────────────────────
	gate := policy.NewGate(d.Policy)
	can := func(op policy.Operation) gin.HandlerFunc { return middleware.Authorize(gate, op) }

	// Public
	r.GET("/health", handler.Health(db, d.Redis))

	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", middleware.LoginRateLimiter(), authH.Login)
		auth.POST("/refresh", authH.Refresh)
	}

	// Protected routes. Every route names its operation; roles live in the policy table.
	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret), middleware.ActiveAccount(userRepo))
	{
		v1.GET("/auth/me", authH.Me)

		sales := v1.Group("/sales")
		{
			sales.POST("", can(policy.SaleCreate), salesH.Create)
			sales.GET("", can(policy.SaleList), salesH.List)
			sales.GET("/:id", can(policy.SaleRead), salesH.Get)
			sales.GET("/:id/receipt", can(policy.SaleRead), salesH.Receipt)
		}

		products := v1.Group("/products")
		{
			products.GET("", can(policy.ProductList), productsH.List)
			products.POST("", can(policy.ProductCreate), productsH.Create)
			products.GET("/barcode/:barcode", can(policy.ProductLookup), productsH.Lookup)
			products.GET("/:id", can(policy.ProductRead), productsH.Get)
			products.PUT("/:id", can(policy.ProductUpdate), productsH.Update)
			products.DELETE("/:id", can(policy.ProductDelete), productsH.Delete)
		}

		users := v1.Group("/users")
		{
			users.GET("", can(policy.UserList), usersH.List)
			users.GET("/inactive", can(policy.UserList), usersH.ListInactive)
			users.POST("", can(policy.UserCreate), usersH.Create)
			users.PUT("/:id", can(policy.UserUpdate), usersH.Update)
			users.DELETE("/:id", can(policy.UserDeactivate), usersH.Delete)
			users.PATCH("/:id/reactivate", can(policy.UserReactivate), usersH.Reactivate)
		}

		v1.GET("/logs", can(policy.LogList), logsH.List)

		reports := v1.Group("/reports")
		{
			reports.GET("/sales", can(policy.ReportSales), reportsH.Sales)
			reports.GET("/my-sales", can(policy.ReportMySales), reportsH.MySales)
			reports.GET("/stock-alerts", can(policy.ReportStockAlerts), reportsH.StockAlerts)
			reports.GET("/stock-dashboard", can(policy.ReportStockDashboard), reportsH.StockDashboard)
			reports.GET("/most-sold-products", can(policy.ReportMostSold), reportsH.MostSold)
			reports.GET("/sales-by-category", can(policy.ReportSalesByCategory), reportsH.SalesByCategory)
			reports.GET("/recent-stock-movements", can(policy.ReportRecentStockMovements), reportsH.RecentStockMovements)
			reports.GET("/stock-movements", can(policy.ReportStockMovements), reportsH.StockMovements)
		}
	}

	// Swagger UI, only enabled outside production
	if !cfg.IsProduction() {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
