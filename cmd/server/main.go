package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/sswpa/box-office/config"
	"github.com/sswpa/box-office/internal/app"
	"github.com/sswpa/box-office/internal/cache"
	"github.com/sswpa/box-office/internal/handler"
	"github.com/sswpa/box-office/internal/mq"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}

	var redisCache *cache.RedisCache
	if cfg.CacheURL != "" {
		redisCache, err = cache.NewRedisCache(cfg.CacheURL, cfg.CatalogTTL)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
	}

	var mqConn *amqp.Connection
	if cfg.MQURL != "" {
		mqConn, err = mq.NewMQConn(cfg.MQURL)
		if err != nil {
			logger.Fatal("failed to connect to rabbitmq", zap.Error(err))
		}
	} else {
		logger.Info("rabbitmq not configured, expiry runs on the ticker sweep only")
	}

	application := app.New(cfg, db, redisCache, mqConn, logger)
	if err := application.Init(); err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}

	publicHandler := handler.NewPublicHandler(
		application.RecitalService,
		application.CatalogService,
		application.OrderService,
		application.CheckoutWorkflow,
	)
	adminHandler := handler.NewAdminHandler(
		application.RecitalService,
		application.CatalogService,
		application.OrderService,
	)
	router := handler.NewRouter(publicHandler, adminHandler, cfg.AdminSecret)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: router,
	}

	go func() {
		logger.Info("starting server", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan
	logger.Info("signal received, starting graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	if err := application.Close(); err != nil {
		logger.Error("application close error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
