package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/medreza/marketplace-coupons/pkg/cache"
	"github.com/medreza/marketplace-coupons/pkg/config"
	"github.com/medreza/marketplace-coupons/pkg/coupon"
	"github.com/medreza/marketplace-coupons/pkg/database"
	"github.com/medreza/marketplace-coupons/pkg/handlers"
	"github.com/medreza/marketplace-coupons/pkg/middleware"
	"github.com/medreza/marketplace-coupons/pkg/repository"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	setupLogging(cfg)

	ctx := context.Background()

	var store repository.CouponStore
	switch cfg.StoreDriver {
	case config.StoreMemory:
		logrus.Warn("Using in-memory coupon store, data will not survive a restart")
		store = repository.NewMemoryStore()
	default:
		client, db, err := database.InitDB(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoTimeout)
		if err != nil {
			logrus.Fatalf("Failed to initialize database: %v", err)
		}
		defer func() {
			if err := client.Disconnect(context.Background()); err != nil {
				logrus.WithError(err).Error("Failed to disconnect from database")
			}
		}()
		store = repository.NewCouponRepository(db)
	}

	var couponCache coupon.Cache
	if cfg.RedisURL != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logrus.WithError(err).Warn("Redis unavailable, coupon cache disabled")
		} else {
			defer rdb.Close()
			couponCache = cache.NewCouponCache(rdb, cfg.CacheTTL)
		}
	}

	couponService := coupon.NewService(store, coupon.SystemClock{}, couponCache, cfg.RedeemMaxAttempts)
	couponHandler := handlers.NewCouponHandler(couponService)

	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger())
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	couponHandler.Register(router.Group("/api"))

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("Starting service on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Failed to start service: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Service forced to shutdown: %v", err)
		return
	}

	logrus.Info("Service exited")
}

func setupLogging(cfg *config.Config) {
	if cfg.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logrus.WithField("log_level", cfg.LogLevel).Warn("Unknown log level, using info")
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}
