package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"hrops/internal/domain/audit"
	"hrops/internal/domain/auth"
	"hrops/internal/domain/directory"
	"hrops/internal/domain/leave"
	"hrops/internal/domain/notifications"
	"hrops/internal/platform/blob"
	"hrops/internal/platform/config"
	"hrops/internal/platform/db"
	"hrops/internal/platform/email"
	"hrops/internal/platform/jobs"
	"hrops/internal/platform/metrics"
	audithandler "hrops/internal/transport/http/handlers/audit"
	authhandler "hrops/internal/transport/http/handlers/auth"
	directoryhandler "hrops/internal/transport/http/handlers/directory"
	leavehandler "hrops/internal/transport/http/handlers/leave"
	notificationshandler "hrops/internal/transport/http/handlers/notifications"
	"hrops/internal/transport/http/middleware"
)

type App struct {
	Config  config.Config
	DB      *pgxpool.Pool
	Router  http.Handler
	Jobs    *jobs.Service
	Metrics *metrics.Collector
}

// New connects to the database, applies migrations and seed data per the
// config flags, and wires every domain service onto a router. It does not
// listen; Run and the integration tests both build on it.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, migrationsDir()); err != nil {
			pool.Close()
			return nil, err
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg); err != nil {
			pool.Close()
			return nil, err
		}
	}

	collector := metrics.New()
	policy := leave.Policy{
		LOPBalanceCeiling:    decimal.NewFromFloat(cfg.LOPBalanceCeiling),
		LOPMonthlyCap:        decimal.NewFromFloat(cfg.LOPMonthlyCap),
		CasualMonthlyCap:     decimal.NewFromFloat(cfg.CasualMonthlyCap),
		CasualBalanceCeiling: decimal.NewFromFloat(cfg.CasualBalanceLimit),
	}

	blobs, err := blob.New(cfg.CertificateDir)
	if err != nil {
		pool.Close()
		return nil, err
	}

	dirStore := directory.NewStore(pool)
	leaveStore := leave.NewStore(pool)
	auditSvc := audit.New(pool)
	notifSvc := notifications.New(notifications.NewStore(pool), email.New(cfg), cfg.EmailFrom)
	leaveSvc := leave.NewService(leaveStore, dirStore, policy, notifSvc, blobs)
	jobsSvc := jobs.New(pool, cfg, policy)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(collector))
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.With(middleware.RequirePermission(auth.PermReportsRead)).
			Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(collector.Snapshot())
			})
	}

	router.Route("/api/v1", func(r chi.Router) {
		authHandler := authhandler.NewHandler(dirStore, cfg.JWTSecret)
		r.Post("/auth/login", authHandler.HandleLogin)
		r.With(middleware.RequireAuth).Get("/auth/me", authHandler.HandleMe)

		directoryhandler.NewHandler(dirStore, auditSvc).RegisterRoutes(r)
		leavehandler.NewHandler(leaveSvc, blobs, auditSvc, jobsSvc).RegisterRoutes(r)
		notificationshandler.NewHandler(notifSvc).RegisterRoutes(r)
		audithandler.NewHandler(auditSvc).RegisterRoutes(r)
	})

	return &App{
		Config:  cfg,
		DB:      pool,
		Router:  router,
		Jobs:    jobsSvc,
		Metrics: collector,
	}, nil
}

func (a *App) Close() {
	a.DB.Close()
}

// migrationsDir resolves the migrations directory relative to the working
// directory, walking up so tests run from package directories still find
// it.
func migrationsDir() string {
	dir := "migrations"
	for i := 0; i < 6; i++ {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
		dir = "../" + dir
	}
	return "migrations"
}

func Run() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()
	app, err := New(ctx, cfg)
	if err != nil {
		slog.Error("app init failed", "err", err)
		os.Exit(1)
	}
	defer app.Close()

	app.Jobs.Start(ctx)

	slog.Info("server listening", "addr", cfg.Addr, "env", cfg.Environment)
	if err := http.ListenAndServe(cfg.Addr, app.Router); err != nil {
		slog.Error("server failed", "err", err)
		os.Exit(1)
	}
}
