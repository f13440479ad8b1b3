package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/hedgedesk/exposure-engine/internal/config"
	"github.com/hedgedesk/exposure-engine/internal/coverage"
	"github.com/hedgedesk/exposure-engine/internal/desk"
	"github.com/hedgedesk/exposure-engine/internal/mtm"
	"github.com/hedgedesk/exposure-engine/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	logger := cfg.Logging.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if dbURL := cfg.Database.URL; dbURL != "" {
		if cfg.Database.AutoMigrate {
			if err := store.RunMigrations(dbURL, cfg.Database.MigrationsPath); err != nil {
				slog.Error("migrations failed", "err", err)
				os.Exit(1)
			}
			slog.Info("migrations applied", "path", cfg.Database.MigrationsPath)
		}

		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if redisURL := cfg.Database.RedisURL; redisURL != "" {
			opt, err := redis.ParseURL(redisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, cfg.Cache.TTL)
			slog.Info("Redis cache enabled", "ttl", cfg.Cache.TTL.String())
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Valuation defaults ---
	conv, err := mtm.ParseConvention(cfg.MTM.Convention)
	if err != nil {
		slog.Error("invalid MTM_CONVENTION", "err", err)
		os.Exit(1)
	}
	cal, err := config.LoadCalendar(cfg.MTM.CalendarFile)
	if err != nil {
		slog.Error("calendar load failed", "err", err)
		os.Exit(1)
	}

	// --- WebSocket hub ---
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	wsHub := desk.NewWSHub()
	go wsHub.Run(ctx)

	// --- Desk service ---
	svc := desk.NewService(st, wsHub,
		desk.WithLimiter(coverage.NewLimiter(cfg.Coverage.MaxNetShort)),
		desk.WithCalendar(cal),
		desk.WithConvention(conv),
	)
	rl := desk.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	go rl.Run(ctx, time.Minute, cfg.RateLimit.IdleTTL)

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      desk.NewRouter(svc, wsHub, rl),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("exposure-engine listening", "port", cfg.Server.Port, "convention", string(conv))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	slog.Info("shutting down exposure-engine...")
	stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("exposure-engine stopped")
}
