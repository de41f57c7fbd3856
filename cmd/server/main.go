package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/forgo/taskboard/internal/config"
	"github.com/forgo/taskboard/internal/database"
	"github.com/forgo/taskboard/internal/handler"
	"github.com/forgo/taskboard/internal/jobs"
	"github.com/forgo/taskboard/internal/logging"
	"github.com/forgo/taskboard/internal/middleware"
	"github.com/forgo/taskboard/internal/query"
	"github.com/forgo/taskboard/internal/repository"
	"github.com/forgo/taskboard/internal/service"
	"github.com/forgo/taskboard/internal/validate"
	"github.com/forgo/taskboard/migrations"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	slog.SetDefault(logger)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize database connection
	db := database.NewSurrealDB(database.Config{
		Host:      cfg.Database.Host,
		Port:      cfg.Database.Port,
		User:      cfg.Database.User,
		Password:  cfg.Database.Password,
		Namespace: cfg.Database.Namespace,
		Database:  cfg.Database.Database,
	})

	ctx := context.Background()
	if err := db.Connect(ctx); err != nil {
		slog.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	slog.Info("connected to database",
		slog.String("host", cfg.Database.Host),
		slog.String("database", cfg.Database.Database),
	)

	if cfg.Database.Migrate {
		if err := database.Migrate(ctx, db, migrations.FS); err != nil {
			slog.Error("failed to apply migrations", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	validator, err := validate.New()
	if err != nil {
		slog.Error("failed to compile schemas", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize repositories
	taskRepo := repository.NewTaskRepository(db)
	userRepo := repository.NewUserRepository(db)
	reconcileRepo := repository.NewReconcileRepository(db)

	// Initialize services
	taskService := service.NewTaskService(service.TaskServiceConfig{
		TaskRepo:  taskRepo,
		UserRepo:  userRepo,
		Validator: validator,
		LimitPolicy: query.LimitPolicy{
			Default:      cfg.Resources.TaskDefaultLimit,
			ResetInvalid: cfg.Resources.TaskResetInvalidLimit,
		},
	})
	userService := service.NewUserService(service.UserServiceConfig{
		UserRepo:  userRepo,
		Validator: validator,
		LimitPolicy: query.LimitPolicy{
			Default:      cfg.Resources.UserDefaultLimit,
			ResetInvalid: cfg.Resources.UserResetInvalidLimit,
		},
	})
	reconcileService := service.NewReconcileService(service.ReconcileServiceConfig{
		TaskRepo:      taskRepo,
		UserRepo:      userRepo,
		ReconcileRepo: reconcileRepo,
		Logger:        logger,
	})

	// Rate limiting and idempotency state lives in Redis when configured
	rateCfg := middleware.RateLimitConfig{
		Rate:   cfg.RateLimit.Rate,
		Window: cfg.RateLimit.Window,
		Burst:  cfg.RateLimit.Burst,
	}
	idemCfg := middleware.IdempotencyConfig{TTL: cfg.Server.IdempotencyTTL}

	var (
		limiter     middleware.Limiter
		idempotency middleware.IdempotencyBackend
	)
	if cfg.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()

		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Warn("redis unreachable at startup", slog.String("error", err.Error()))
		}
		limiter = middleware.NewRedisRateLimiter(rdb, rateCfg)
		idempotency = middleware.NewRedisIdempotencyStore(rdb, idemCfg)
		slog.Info("using redis for rate limiting and idempotency", slog.String("addr", cfg.Redis.Addr))
	} else {
		memLimiter := middleware.NewRateLimiter(rateCfg)
		defer memLimiter.Stop()
		memStore := middleware.NewIdempotencyStore(idemCfg)
		defer memStore.Stop()
		limiter, idempotency = memLimiter, memStore
	}

	// Routes
	mux := http.NewServeMux()
	handler.NewTaskHandler(taskService).RegisterRoutes(mux)
	handler.NewUserHandler(userService).RegisterRoutes(mux)
	mux.HandleFunc("GET /health", handler.NewHealthHandler(db).Health)
	mux.Handle("GET /metrics", promhttp.Handler())

	wrapped := middleware.Chain(
		mux,
		middleware.RequestID,
		middleware.Logger,
		middleware.Recovery,
		middleware.CORS(cfg.Server.AllowedOrigins),
		middleware.Metrics,
		middleware.RateLimit(limiter),
		middleware.Compress,
		middleware.Idempotency(idempotency),
	)

	// Background reverse-index repair
	var reconcileJob *jobs.ReconcileJob
	if cfg.Reconcile.Enabled {
		reconcileJob = jobs.NewReconcileJob(jobs.ReconcileJobConfig{
			Reconciler: reconcileService,
			Interval:   cfg.Reconcile.Interval,
			Logger:     logger,
		})
		reconcileJob.Start()
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      wrapped,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting server",
			slog.String("port", cfg.Server.Port),
			slog.String("env", cfg.Server.Env),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", slog.String("error", err.Error()))
	}
	if reconcileJob != nil {
		reconcileJob.Stop()
	}

	slog.Info("server exited")
}
