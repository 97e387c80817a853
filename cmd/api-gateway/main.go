package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lithium-apps/exam-timetabling-api/internal/handler"
	"github.com/lithium-apps/exam-timetabling-api/internal/middleware"
	"github.com/lithium-apps/exam-timetabling-api/internal/repository"
	"github.com/lithium-apps/exam-timetabling-api/internal/service"
	"github.com/lithium-apps/exam-timetabling-api/pkg/cache"
	"github.com/lithium-apps/exam-timetabling-api/pkg/config"
	"github.com/lithium-apps/exam-timetabling-api/pkg/database"
	"github.com/lithium-apps/exam-timetabling-api/pkg/export"
	"github.com/lithium-apps/exam-timetabling-api/pkg/logger"
	corsmiddleware "github.com/lithium-apps/exam-timetabling-api/pkg/middleware/cors"
	reqidmiddleware "github.com/lithium-apps/exam-timetabling-api/pkg/middleware/requestid"
)

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
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	var statsCache *repository.CacheRepository
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, venue stats cache disabled", zap.Error(err))
	} else {
		defer redisClient.Close() //nolint:errcheck
		statsCache = repository.NewCacheRepository(redisClient, logr)
	}

	examRepo := repository.NewExamRepository(db)
	venueRepo := repository.NewVenueRepository(db)
	slotRepo := repository.NewExamVenueRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	provisionRepo := repository.NewProvisionRepository(db)
	assignmentRepo := repository.NewStudentExamRepository(db)
	uploadLogRepo := repository.NewUploadLogRepository(db)
	dietRepo := repository.NewDietRepository(db)

	metricsSvc := service.NewMetricsService()

	allocationSvc := service.NewAllocationService(venueRepo, slotRepo, assignmentRepo, logr, metricsSvc, cfg.Allocator)

	var venueSvc *service.VenueService
	if statsCache != nil {
		venueSvc = service.NewVenueService(db, venueRepo, slotRepo, assignmentRepo, examRepo, statsCache, logr, metricsSvc, cfg.Stats)
	} else {
		venueSvc = service.NewVenueService(db, venueRepo, slotRepo, assignmentRepo, examRepo, nil, logr, metricsSvc, cfg.Stats)
	}

	ingestSvc := service.NewIngestService(
		db, examRepo, venueRepo, slotRepo, studentRepo, provisionRepo, assignmentRepo,
		uploadLogRepo, allocationSvc, venueSvc, logr, metricsSvc, cfg.Ingest,
	)
	dietSvc := service.NewDietService(dietRepo, logr)
	examSvc := service.NewExamService(examRepo, assignmentRepo, slotRepo, export.NewCSVExporter(), logr)

	uploadHandler := handler.NewUploadHandler(ingestSvc, dietSvc)
	venueHandler := handler.NewVenueHandler(venueSvc)
	examHandler := handler.NewExamHandler(examSvc, venueSvc)
	dietHandler := handler.NewDietHandler(dietSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	api := r.Group(cfg.APIPrefix)
	{
		api.POST("/uploads", uploadHandler.Ingest)
		api.GET("/uploads/logs", uploadHandler.Logs)
		api.POST("/allocations/rerun", uploadHandler.Reallocate)

		api.GET("/venues", venueHandler.List)
		api.POST("/venues", venueHandler.Save)
		api.GET("/venues/:name", venueHandler.Get)

		api.GET("/exams", examHandler.List)
		api.GET("/exams/:id", examHandler.Get)
		api.GET("/exams/:id/slots", examHandler.Slots)
		api.GET("/exams/:id/allocations", examHandler.Allocations)
		api.GET("/exams/:id/allocations/export", examHandler.ExportAllocations)
		api.GET("/exams/:id/stats", examHandler.Stats)

		api.GET("/diets", dietHandler.List)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
