package router

import (
	"context"
	"time"

	"parkingcash/internal/config"
	"parkingcash/internal/handler"
	"parkingcash/internal/middleware"
	"parkingcash/internal/model"
	"parkingcash/internal/repository"
	"parkingcash/internal/service"
	"parkingcash/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
// ctx bounds the background goroutines started here (rate limiter purge).
func New(ctx context.Context, cfg *config.Config, db *gorm.DB, rdb *redis.Client) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	apiLimiter := middleware.NewAPIRateLimiter(1000, time.Minute) // 1000 req/min per IP
	loginLimiter := middleware.NewLoginRateLimiter()
	apiLimiter.StartPurge(ctx)
	loginLimiter.StartPurge(ctx)

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.AllowedOrigins()...))
	r.Use(middleware.ErrorHandler())
	r.Use(apiLimiter.Middleware())

	// ── Repositories ─────────────────────────────────────────────────────────
	cashRepo := repository.NewCashRepository(db)
	stayRepo := repository.NewStayRepository(db)
	userRepo := repository.NewUserRepository(db)
	productRepo := repository.NewProductRepository(db)

	// ── Async fan-out ────────────────────────────────────────────────────────
	dispatcher := worker.NewDispatcher(rdb, cfg.AMQPURL != "")

	// ── Services ─────────────────────────────────────────────────────────────
	opts := service.Options{ChangeFloat: cfg.ChangeFloat, Location: cfg.Location}
	authSvc := service.NewAuthService(userRepo, cfg)
	productSvc := service.NewProductService(productRepo)
	pendingSvc := service.NewPendingService(cashRepo, stayRepo, userRepo, opts)
	cashSvc := service.NewCashService(cashRepo, stayRepo, productRepo, userRepo, pendingSvc, dispatcher, opts)

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(authSvc)
	productosH := handler.NewProductosHandler(productSvc)
	cajaH := handler.NewCajaHandler(cashSvc, pendingSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb))

	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", loginLimiter.Middleware(), authH.Login)
	}

	// Protected routes. Both roles operate the register.
	v1 := r.Group("/v1",
		middleware.JWTAuth(cfg.JWTSecret),
		middleware.RequireRole(model.RoleAdmin, model.RoleWorker),
	)
	{
		v1.GET("/productos", productosH.Listar)

		caja := v1.Group("/caja")
		{
			caja.POST("/abrir", cajaH.Abrir)
			caja.GET("/activa", cajaH.GetActiva)
			caja.GET("/ultimo-cierre", cajaH.UltimoCierre)
			caja.GET("/pre-cierre", cajaH.PreCierre)
			caja.GET("/historial", cajaH.Historial)
			caja.GET("/pendientes", cajaH.Pendientes)
			caja.POST("/pendientes/:stay_id", cajaH.RegistrarPendiente)
			caja.POST("/retiro", cajaH.Retiro)
			caja.POST("/venta-producto", cajaH.VentaProducto)
			caja.DELETE("/transacciones/:id", cajaH.DeshacerTransaccion)
			caja.GET("/:id", cajaH.ObtenerSesion)
			caja.POST("/:id/cerrar", cajaH.Cerrar)
			caja.GET("/:id/transacciones", cajaH.Transacciones)
		}
	}

	// Swagger UI, only outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
