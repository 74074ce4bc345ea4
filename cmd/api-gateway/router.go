package main

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/tdnguyen-dev/evswap-station/docs"
	"github.com/tdnguyen-dev/evswap-station/internal/common/config"
	"github.com/tdnguyen-dev/evswap-station/internal/common/jwt"
	"github.com/tdnguyen-dev/evswap-station/internal/common/logger"
	"github.com/tdnguyen-dev/evswap-station/internal/common/metrics"
	authHandler "github.com/tdnguyen-dev/evswap-station/internal/handler/auth"
	inventoryHandler "github.com/tdnguyen-dev/evswap-station/internal/handler/inventory"
	paymentHandler "github.com/tdnguyen-dev/evswap-station/internal/handler/payment"
	planHandler "github.com/tdnguyen-dev/evswap-station/internal/handler/plan"
	reservationHandler "github.com/tdnguyen-dev/evswap-station/internal/handler/reservation"
	revenueHandler "github.com/tdnguyen-dev/evswap-station/internal/handler/revenue"
	swapHandler "github.com/tdnguyen-dev/evswap-station/internal/handler/swap"
	vehicleHandler "github.com/tdnguyen-dev/evswap-station/internal/handler/vehicle"
	"github.com/tdnguyen-dev/evswap-station/internal/middleware"
	authService "github.com/tdnguyen-dev/evswap-station/internal/service/auth"
	inventoryService "github.com/tdnguyen-dev/evswap-station/internal/service/inventory"
	paymentService "github.com/tdnguyen-dev/evswap-station/internal/service/payment"
	planService "github.com/tdnguyen-dev/evswap-station/internal/service/plan"
	reservationService "github.com/tdnguyen-dev/evswap-station/internal/service/reservation"
	revenueService "github.com/tdnguyen-dev/evswap-station/internal/service/revenue"
	swapService "github.com/tdnguyen-dev/evswap-station/internal/service/swap"
	vehicleService "github.com/tdnguyen-dev/evswap-station/internal/service/vehicle"
)

// RouterDeps carries everything the router needs.
type RouterDeps struct {
	Config       *config.Config
	JWTManager   *jwt.Manager
	AuthSvc      *authService.AuthService
	Reservation  *reservationService.ReservationService
	Inventory    *inventoryService.InventoryService
	Swap         *swapService.SwapService
	Revenue      *revenueService.RevenueService
	Payment      *paymentService.PaymentService
	Vehicle      *vehicleService.VehicleService
	Plan         *planService.PlanService
	Redis        *redis.Client
	HealthChecks *HealthChecker
}

// NewRouter assembles the gin engine.
func NewRouter(deps *RouterDeps) *gin.Engine {
	cfg := deps.Config

	if cfg.IsRelease() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(middleware.RequestID())
	r.Use(middleware.RealIP())
	r.Use(middleware.Recovery(logger.GetLogger()))
	r.Use(middleware.Logging(middleware.DefaultLoggingConfig(logger.GetLogger())))
	r.Use(middleware.SecureHeaders())
	r.Use(middleware.CORS(&middleware.CORSConfig{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    cfg.CORS.ExposedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           cfg.CORS.MaxAge,
	}))

	if cfg.Metrics.Enabled {
		if m := metrics.Get(); m != nil {
			r.Use(m.GinMiddleware())
			r.GET(cfg.Metrics.Path, metrics.Handler())
		}
	}

	if cfg.RateLimit.Enabled {
		r.Use(middleware.IPRateLimit(deps.Redis, cfg.RateLimit.RequestsPerMinute, time.Minute))
	}

	deps.HealthChecks.RegisterRoutes(r)

	if cfg.IsDebug() {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	v1 := r.Group("/api/v1")
	// identity is resolved once for the whole API group so the core platform
	// client can act with the caller's upstream token; per-route middleware
	// still enforces roles
	v1.Use(middleware.OptionalAuth(deps.JWTManager))
	v1.Use(middleware.CoreSession(deps.AuthSvc))
	{
		authHandler.NewHandler(deps.AuthSvc).RegisterRoutes(v1, deps.JWTManager)
		reservationHandler.NewHandler(deps.Reservation).RegisterRoutes(v1, deps.JWTManager)
		inventoryHandler.NewHandler(deps.Inventory).RegisterRoutes(v1, deps.JWTManager)
		swapHandler.NewHandler(deps.Swap).RegisterRoutes(v1, deps.JWTManager)
		revenueHandler.NewHandler(deps.Revenue).RegisterRoutes(v1, deps.JWTManager)
		paymentHandler.NewHandler(deps.Payment).RegisterRoutes(v1, deps.JWTManager)
		vehicleHandler.NewHandler(deps.Vehicle).RegisterRoutes(v1, deps.JWTManager)
		planHandler.NewHandler(deps.Plan).RegisterRoutes(v1, deps.JWTManager)
	}

	return r
}
