package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cabangpos/backend/internal/branch"
	"cabangpos/backend/internal/branchdb"
	"cabangpos/backend/internal/cache"
	"cabangpos/backend/internal/config"
	"cabangpos/backend/internal/httpapi"
	"cabangpos/backend/internal/logger"
	"cabangpos/backend/internal/sales"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	log, err := logger.Init(cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	provider, err := branch.LoadFile(cfg.BranchesFile)
	if err != nil {
		log.Fatal("branch registry unavailable", zap.String("path", cfg.BranchesFile), zap.Error(err))
	}
	log.Info("branch registry loaded",
		zap.String("path", cfg.BranchesFile),
		zap.Strings("branches", provider.BranchIDs()))

	router := branchdb.NewRouter(provider)
	provider.OnConfigChanged(router.Invalidate)

	closers := []func() error{router.Close}

	statsCache := cache.StatsCache(cache.NoopStatsCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisStatsCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Warn("redis unavailable, using noop stats cache", zap.Error(err))
		} else {
			statsCache = redisCache
			closers = append(closers, redisCache.Close)
			log.Info("stats cache: redis")
		}
	} else {
		log.Info("stats cache: noop")
	}

	engine := sales.New(router, provider, statsCache, time.Duration(cfg.StatsCacheTTLSeconds)*time.Second)
	api := httpapi.New(engine, router, provider, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("POS backend listening", zap.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown error", zap.Error(err))
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Warn("close error", zap.Error(err))
		}
	}

	log.Info("server stopped")
}
