package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kdduha/bill-parser/internal/cache"
	"github.com/kdduha/bill-parser/internal/config"
	"github.com/kdduha/bill-parser/internal/handler"
	"github.com/kdduha/bill-parser/internal/logging"
	"github.com/kdduha/bill-parser/internal/service"
	"github.com/kdduha/bill-parser/internal/storage"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/sirupsen/logrus"

	_ "github.com/kdduha/bill-parser/docs"
)

// @title Bill Parser API
// @version 1.0
// @description Extracts receipt items, totals, currency, date and merchant from a photo using a vision model.
// @BasePath /
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}

	billService := service.NewBillService(
		logger,
		openai.NewClient(
			option.WithAPIKey(cfg.OpenAI.APIKey),
			option.WithBaseURL(cfg.OpenAI.BaseURL),
			option.WithMaxRetries(cfg.OpenAI.MaxRetries),
		), cfg.OpenAI)

	if cfg.CacheEnable {
		redisCache := cache.NewRedisCache(cfg.RedisConfig)
		defer redisCache.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := redisCache.Ping(pingCtx); err != nil {
			logger.WithError(err).Warn("redis is not reachable, requests will skip the cache until it is")
		}
		cancel()

		billService.SetCacheClient(redisCache)
		logger.WithField("addr", cfg.RedisConfig.Addr).Info("set redis as cache")
	}

	store, err := storage.NewTempStore(cfg.Upload.TempDir)
	if err != nil {
		logger.WithError(err).Fatal("temp store error")
	}
	logger.WithField("dir", store.Dir()).Info("spooling uploads")

	b := handler.NewBillHandler(logger, billService, store, cfg.Upload.MaxBytes)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler.NewRouter(logger, cfg.Server, b),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"port":  cfg.Server.Port,
			"model": cfg.OpenAI.Model,
		}).Info("server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("listen error")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Fatal("server forced to shutdown")
	}
	logger.Info("server stopped")
}
