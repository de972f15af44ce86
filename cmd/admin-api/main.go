package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/edupanel/school-admin-api/api/swagger"
	"github.com/edupanel/school-admin-api/internal/handler"
	"github.com/edupanel/school-admin-api/internal/middleware"
	"github.com/edupanel/school-admin-api/internal/models"
	"github.com/edupanel/school-admin-api/internal/repository"
	"github.com/edupanel/school-admin-api/internal/service"
	"github.com/edupanel/school-admin-api/pkg/cache"
	"github.com/edupanel/school-admin-api/pkg/config"
	"github.com/edupanel/school-admin-api/pkg/database"
	"github.com/edupanel/school-admin-api/pkg/logger"
	corsmiddleware "github.com/edupanel/school-admin-api/pkg/middleware/cors"
	reqidmiddleware "github.com/edupanel/school-admin-api/pkg/middleware/requestid"
)

// @title School Admin API
// @version 1.0.0
// @description Multi-tenant school administration API: announcements and fee management
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	metricsService := service.NewMetricsService()

	var cacheService *service.CacheService
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled")
	} else {
		defer redisClient.Close()
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheService = service.NewCacheService(cacheRepo, metricsService, cfg.Fees.SummaryCacheTTL, logr, true)
	}

	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	announcementRepo := repository.NewAnnouncementRepository(db)
	feeRepo := repository.NewFeeRepository(db)
	termRepo := repository.NewTermRepository(db)
	classRepo := repository.NewClassRepository(db)

	authService := service.NewAuthService(userRepo, auditRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	announcementService := service.NewAnnouncementService(announcementRepo, auditRepo, cacheService, nil, logr, service.AnnouncementServiceConfig{
		PageSize:      cfg.Announcements.PageSize,
		StatsCacheTTL: cfg.Announcements.StatsCacheTTL,
	})
	feeService := service.NewFeeService(feeRepo, termRepo, auditRepo, cacheService, nil, logr, service.FeeServiceConfig{
		PageSize:        cfg.Fees.PageSize,
		SummaryCacheTTL: cfg.Fees.SummaryCacheTTL,
		TrendMonths:     cfg.Fees.TrendMonths,
	})
	classService := service.NewClassService(classRepo, logr)

	authHandler := handler.NewAuthHandler(authService)
	announcementHandler := handler.NewAnnouncementHandler(announcementService)
	feeHandler := handler.NewFeeHandler(feeService)
	classHandler := handler.NewClassHandler(classService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.GET("/me", middleware.JWT(authService), authHandler.Me)
	}

	secured := api.Group("")
	secured.Use(middleware.JWT(authService), middleware.RequireTenant())

	staff := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin)

	announcements := secured.Group("/announcements")
	{
		announcements.GET("", announcementHandler.List)
		announcements.GET("/stats", announcementHandler.Stats)
		announcements.GET("/:id", announcementHandler.Get)
		announcements.POST("", staff, announcementHandler.Create)
		announcements.PUT("/:id", staff, announcementHandler.Update)
		announcements.DELETE("/:id", staff, announcementHandler.Delete)
		announcements.POST("/:id/publish", staff, announcementHandler.Publish)
		announcements.POST("/:id/unpublish", staff, announcementHandler.Unpublish)
		announcements.POST("/:id/archive", staff, announcementHandler.Archive)
	}

	fees := secured.Group("/fees", staff)
	{
		fees.GET("/summary", feeHandler.Summary)
		fees.GET("/invoices", feeHandler.Invoices)
		fees.POST("/invoices", feeHandler.GenerateInvoice)
		fees.GET("/transactions", feeHandler.Transactions)
		fees.GET("/transactions/export", feeHandler.ExportTransactions)
		fees.GET("/transactions/:id/receipt", feeHandler.Receipt)
		fees.POST("/payments", feeHandler.RecordPayment)
	}

	classes := secured.Group("/classes")
	{
		classes.GET("", classHandler.List)
		classes.GET("/:id/sections", classHandler.Sections)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
