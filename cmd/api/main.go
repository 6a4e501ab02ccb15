package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/avolkov/mailhub/internal/app/migrate"
	httpx "github.com/avolkov/mailhub/internal/http"
	"github.com/avolkov/mailhub/internal/repository"
	"github.com/avolkov/mailhub/internal/repository/memory"
	"github.com/avolkov/mailhub/internal/repository/postgres"
	"github.com/avolkov/mailhub/internal/repository/redisstore"
	"github.com/avolkov/mailhub/internal/service/auth"
	"github.com/avolkov/mailhub/internal/service/mailbox"
	"github.com/avolkov/mailhub/internal/service/order"
	"github.com/avolkov/mailhub/pkg/config"
	"github.com/avolkov/mailhub/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg := config.LoadAPIConfig()
	log := logger.New("api", slog.LevelInfo)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	runner, err := migrate.New(pool, cfg.DatabaseURL, cfg.MigrationsDir, log)
	if err != nil {
		log.Error("failed to configure migrations", "error", err)
		os.Exit(1)
	}
	defer runner.Close()
	if err := runner.Ping(ctx); err != nil {
		log.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	if err := runner.Ensure(ctx); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	repo := postgres.New(pool)

	var orders repository.OrderRepository = memory.NewStore()
	if addr := strings.TrimSpace(cfg.OrderRedisAddr); addr != "" {
		orderStore, err := redisstore.NewOrderStore(addr, cfg.OrderRedisPass, cfg.OrderRedisDB)
		if err != nil {
			log.Warn("redis order store unavailable, using in-memory store", "error", err)
		} else {
			defer orderStore.Close()
			orders = orderStore
		}
	}

	authSvc := auth.New(repo, log, cfg)
	mailboxSvc := mailbox.New(repo, repo, log)
	orderSvc := order.New(orders, log)

	limiter := httpx.NewMemoryRateLimiter()
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := httpx.NewRedisRateLimiter(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter = redisLimiter
		}
	}

	router := httpx.NewRouter(log, authSvc, mailboxSvc, orderSvc, limiter, pool.Ping)
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
