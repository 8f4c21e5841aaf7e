package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"land-portal/land-portal-backend/internal/config"
	"land-portal/land-portal-backend/internal/drawsessions"
	"land-portal/land-portal-backend/internal/lands"
	"land-portal/land-portal-backend/internal/mapsession"
	"land-portal/land-portal-backend/pkg/geospatial"
	"land-portal/land-portal-backend/pkg/storage"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		panic(err)
	}

	logger := newLogger(cfg.Logging.Level)
	defer logger.Sync()

	// Connect to database
	logger.Info("Connecting to database",
		zap.String("host", cfg.Database.Host),
		zap.String("db_name", cfg.Database.DBName))
	db, err := gorm.Open(postgres.Open(cfg.Database.GetDatabaseURL()), &gorm.Config{})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("Failed to get database handle", zap.Error(err))
	}
	defer sqlDB.Close()
	sqlDB.SetMaxOpenConns(cfg.Database.MaxConnections)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.Database.MaxLifetime.Duration)

	landRepo := lands.NewGormRepository(db)
	if err := landRepo.Migrate(); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}

	// Listing cache: redis when configured, otherwise in-process
	var listCache lands.ListCache
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		listCache = lands.NewRedisCache(rdb, cfg.Cache.TTL.Duration)
		logger.Info("Using redis listing cache", zap.String("addr", cfg.Redis.Addr))
	} else {
		memCache := lands.NewMemoryCache(cfg.Cache.TTL.Duration)
		defer memCache.Stop()
		listCache = memCache
	}

	images, err := newImageStore(cfg.Storage, logger)
	if err != nil {
		logger.Fatal("Failed to initialize image storage", zap.Error(err))
	}

	landService := lands.NewService(landRepo, listCache, images, logger)
	landHandler := lands.NewHandler(landService, logger)

	// Draw sessions
	hub := drawsessions.NewHub(logger)
	defer hub.Stop()
	registry := drawsessions.NewRegistry(drawsessions.Settings{
		Center:  geospatial.LatLng{Lat: cfg.Map.CenterLat, Lng: cfg.Map.CenterLng},
		Zoom:    cfg.Map.Zoom,
		MaxZoom: cfg.Map.MaxZoom,
		Tiles: mapsession.TileSources{
			StreetURL:    cfg.Map.StreetURL,
			SatelliteURL: cfg.Map.SatelliteURL,
		},
		LocateTimeout: cfg.Sessions.LocateTimeout.Duration,
		IdleTimeout:   cfg.Sessions.IdleTimeout.Duration,
	}, hub, logger)
	if err := registry.StartSweeper(cfg.Sessions.SweepSchedule); err != nil {
		logger.Fatal("Failed to start session sweeper", zap.Error(err))
	}
	defer registry.Stop()
	sessionHandler := drawsessions.NewHandler(registry, hub, landService, logger)

	// Scheduled cache warm-up
	scheduler := cron.New()
	if cfg.Cache.WarmSchedule != "" {
		if _, err := scheduler.AddFunc(cfg.Cache.WarmSchedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := landService.WarmCache(ctx); err != nil {
				logger.Warn("Cache warm-up failed", zap.Error(err))
			}
		}); err != nil {
			logger.Fatal("Invalid cache warm schedule", zap.Error(err))
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Setup Router
	gin.SetMode(cfg.Server.Mode)
	router := gin.Default()

	// CORS Middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// The browser list page calls /lands/getAll directly
	landHandler.RegisterRoutes(router)

	api := router.Group("/api/v1")
	{
		landHandler.RegisterRoutes(api)
		sessionHandler.RegisterRoutes(api)
	}

	// Health Check
	router.GET("/health", func(c *gin.Context) {
		status := "healthy"
		code := http.StatusOK
		if err := sqlDB.PingContext(c.Request.Context()); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":        status,
			"draw_sessions": registry.Len(),
			"timestamp":     time.Now(),
		})
	})

	// Start Server
	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", srv.Addr))

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}

func newLogger(level string) *zap.Logger {
	zcfg := zap.NewProductionConfig()
	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		zcfg.Level = lvl
	}
	logger, err := zcfg.Build()
	if err != nil {
		logger, _ = zap.NewDevelopment()
	}
	return logger
}

// newImageStore uses S3 when a bucket is configured and process memory otherwise
func newImageStore(cfg config.StorageConfig, logger *zap.Logger) (*lands.ImageStore, error) {
	if cfg.Bucket == "" {
		logger.Warn("No S3 bucket configured, keeping listing images in memory")
		return &lands.ImageStore{
			Client: storage.NewMemoryClient(""),
			Bucket: "land-images",
			Proxy:  true,
		}, nil
	}

	client, err := storage.NewS3Client(context.Background(), storage.S3Config{
		Region:          cfg.Region,
		Endpoint:        cfg.Endpoint,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
	})
	if err != nil {
		return nil, err
	}
	return &lands.ImageStore{Client: client, Bucket: cfg.Bucket, URLExpiry: cfg.URLExpiry.Duration}, nil
}
