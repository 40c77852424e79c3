package router

import (
	"time"

	"github.com/melafrancom/erp-bulonera/internal/config"
	"github.com/melafrancom/erp-bulonera/internal/handler"
	"github.com/melafrancom/erp-bulonera/internal/middleware"
	"github.com/melafrancom/erp-bulonera/internal/repository"
	"github.com/melafrancom/erp-bulonera/internal/service"
	"github.com/melafrancom/erp-bulonera/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Repositories ─────────────────────────────────────────────────────────
	customerRepo := repository.NewCustomerRepository(db)
	productRepo := repository.NewProductRepository(db)
	quoteRepo := repository.NewQuoteRepository(db)
	saleRepo := repository.NewSaleRepository(db)
	conversionRepo := repository.NewConversionRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	quoteSvc := service.NewQuoteService(quoteRepo, customerRepo, productRepo)
	saleSvc := service.NewSaleService(saleRepo, customerRepo, productRepo)

	// Worker dispatcher — injected into services that enqueue async jobs
	dispatcher := worker.NewDispatcher(rdb)

	conversionSvc := service.NewConversionService(quoteRepo, saleRepo, conversionRepo, productRepo, dispatcher)
	syncSvc := service.NewSyncService(saleRepo, customerRepo, productRepo)

	// ── Handlers ─────────────────────────────────────────────────────────────
	quotesH := handler.NewQuotesHandler(quoteSvc, conversionSvc)
	salesH := handler.NewSalesHandler(saleSvc)
	syncH := handler.NewSyncHandler(syncSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb))

	// Protected routes
	jwtMW := middleware.JWTAuth(cfg.JWTSecret)
	v1 := r.Group("/v1", jwtMW)
	{
		// Roles: vendedor, supervisor, administrador — declared per-endpoint
		staff := middleware.RequireRole("vendedor", "supervisor", "administrador")
		senior := middleware.RequireRole("supervisor", "administrador")

		pres := v1.Group("/presupuestos", staff)
		{
			pres.POST("", quotesH.Create)
			pres.GET("/:id", quotesH.Get)
			pres.POST("/:id/items", quotesH.AddItem)
			pres.PUT("/:id/items/:item_id", quotesH.UpdateItem)
			pres.DELETE("/:id/items/:item_id", quotesH.RemoveItem)
			pres.POST("/:id/transition", quotesH.Transition)
			pres.POST("/:id/convert", quotesH.Convert)
			pres.GET("/:id/conversion", quotesH.Conversion)
		}
		v1.DELETE("/presupuestos/:id", senior, quotesH.Delete)

		ventas := v1.Group("/ventas", staff)
		{
			ventas.POST("", salesH.Create)
			ventas.GET("/:id", salesH.Get)
			ventas.POST("/:id/items", salesH.AddItem)
			ventas.PUT("/:id/items/:item_id", salesH.UpdateItem)
			ventas.DELETE("/:id/items/:item_id", salesH.RemoveItem)
			ventas.POST("/:id/transition", salesH.Transition)
			ventas.POST("/:id/facturar", salesH.RequestInvoice)
		}
		v1.DELETE("/ventas/:id", senior, salesH.Delete)

		// Offline sync endpoints (terminals in the warehouse)
		sync := v1.Group("/sync", staff)
		{
			sync.POST("/upload", middleware.SyncRateLimiter(cfg.SyncUploadsPerHour), syncH.Upload)
			sync.POST("/resolve", senior, syncH.Resolve)
			sync.POST("/retry", syncH.Retry)
			sync.GET("/pending", syncH.Pending)
			sync.GET("/status/:sale_id", syncH.Status)
		}
	}

	return r
}
