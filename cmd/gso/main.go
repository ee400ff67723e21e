package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/jekmagalaman/gso/internal/config"
	"github.com/jekmagalaman/gso/internal/gso/entity"
	"github.com/jekmagalaman/gso/internal/gso/handler"
	"github.com/jekmagalaman/gso/internal/gso/repository"
	"github.com/jekmagalaman/gso/internal/gso/service"
	"github.com/jekmagalaman/gso/internal/gso/sse"
	"github.com/jekmagalaman/gso/internal/middleware"
	"github.com/jekmagalaman/gso/internal/shared/textgen"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting gso service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	if cfg.JWT.Secret == "" {
		zapLogger.Fatal("JWT secret is not configured (JWT_SECRET)")
	}

	db, err := initDatabase(cfg.Database, cfg.Server.Mode)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := db.AutoMigrate(entity.Models()...); err != nil {
		zapLogger.Fatal("AutoMigrate failed", zap.Error(err))
	}

	repos := repository.NewRepositories(db)

	ctx := context.Background()
	var rdb *redis.Client
	if cfg.Redis.Host != "" {
		rdb = initRedis(cfg.Redis)
		if err := rdb.Ping(ctx).Err(); err != nil {
			zapLogger.Warn("Redis unavailable, refresh tokens will not be revocable", zap.Error(err))
			rdb = nil
		}
	}

	var store service.ObjectStore
	if cfg.MinIO.Endpoint != "" {
		minioStore, err := service.NewMinIOStore(ctx, cfg.MinIO.Endpoint, cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, cfg.MinIO.Bucket, cfg.MinIO.UseSSL)
		if err != nil {
			zapLogger.Warn("MinIO unavailable, attachments disabled", zap.Error(err))
		} else {
			store = minioStore
		}
	}

	hub := sse.NewHub(zapLogger)
	services := service.NewServices(db, repos, cfg, service.Deps{
		Generator: textgen.NewClient(cfg.TextGen.URL, cfg.TextGen.APIKey, cfg.TextGen.Timeout),
		Redis:     rdb,
		Store:     store,
		Hub:       hub,
		Logger:    zapLogger,
	})
	handlers := handler.NewHandlers(services, hub, zapLogger)

	if err := bootstrapAdmin(ctx, repos, zapLogger); err != nil {
		zapLogger.Fatal("Failed to create bootstrap account", zap.Error(err))
	}

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/v1/events"})))

	registerRoutes(router, handlers, db, rdb, cfg)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: 0, // event streams are long-lived
	}

	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}
	if rdb != nil {
		rdb.Close()
	}

	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	if cfg.Output != "file" {
		return zapCfg.Build()
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
	encoder := zapcore.NewConsoleEncoder(zapCfg.EncoderConfig)
	if cfg.Format == "json" {
		encoder = zapcore.NewJSONEncoder(zapCfg.EncoderConfig)
	}
	core := zapcore.NewTee(
		zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), zapCfg.Level),
		zapcore.NewCore(encoder, zapcore.AddSync(rotator), zapCfg.Level),
	)
	return zap.New(core, zap.AddCaller()), nil
}

func initDatabase(cfg config.DatabaseConfig, mode string) (*gorm.DB, error) {
	level := logger.Info
	if mode == "release" {
		level = logger.Warn
	}
	gormConfig := &gorm.Config{
		Logger:  logger.Default.LogMode(level),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// bootstrapAdmin creates a GSO account from GSO_ADMIN_USERNAME and
// GSO_ADMIN_PASSWORD when no GSO account exists yet.
func bootstrapAdmin(ctx context.Context, repos *repository.Repositories, zapLogger *zap.Logger) error {
	username := config.GetEnvOrDefault("GSO_ADMIN_USERNAME", "")
	password := config.GetEnvOrDefault("GSO_ADMIN_PASSWORD", "")
	if username == "" || password == "" {
		return nil
	}
	existing, err := repos.User.List(ctx, repository.UserQuery{Role: entity.RoleGSO})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	hash, err := service.HashPassword(password)
	if err != nil {
		return err
	}
	admin := &entity.User{
		Username:     username,
		FirstName:    "GSO",
		LastName:     "Administrator",
		Role:         entity.RoleGSO,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := repos.User.Create(ctx, admin); err != nil {
		return err
	}
	zapLogger.Info("Created bootstrap GSO account", zap.String("username", username))
	return nil
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, db *gorm.DB, rdb *redis.Client, cfg *config.Config) {
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": err.Error()})
			return
		}
		status := gin.H{"status": "ok", "database": "ok"}
		if rdb != nil {
			if err := rdb.Ping(c.Request.Context()).Err(); err != nil {
				status["redis"] = err.Error()
			} else {
				status["redis"] = "ok"
			}
		}
		c.JSON(http.StatusOK, status)
	})

	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	handler.RegisterRoutes(r.Group("/api/v1"), h, cfg.JWT.Secret)
}
