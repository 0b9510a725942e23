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

	"muhasebe-platform/internal/audit"
	"muhasebe-platform/internal/auth"
	"muhasebe-platform/internal/authz"
	"muhasebe-platform/internal/config"
	"muhasebe-platform/internal/httpapi"
	"muhasebe-platform/internal/identity"
	"muhasebe-platform/internal/invoicing"
	"muhasebe-platform/internal/rls"
	"muhasebe-platform/internal/session"
	"muhasebe-platform/internal/tenant"
	"muhasebe-platform/pkg/logger"
	"muhasebe-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	allowlist, err := authz.NewIPAllowlist(cfg.Security.IPAllowlist)
	if err != nil {
		log.Error("ip allowlist init failed", "err", err)
		os.Exit(1)
	}

	users := identity.NewPostgresStore(db)
	memberships := tenant.NewPostgresStore(db)
	revocations := session.NewRedisRevocations(rdb)
	lockouts := session.NewRedisLockouts(rdb, session.LockoutPolicy{
		MaxFailedLogins: cfg.Security.MaxFailedLogins,
		LockoutDuration: cfg.Security.LockoutDuration,
	})
	binder := rls.NewBinder(db)
	auditSvc := audit.NewService(audit.NewPostgresRepo(db))

	stages := authz.Stages{
		Tokens:      authManager,
		Revocations: revocations,
		Principals:  users,
		Lockouts:    lockouts,
		Memberships: memberships,
		Leases: authz.LeaseSourceFunc(func(ctx context.Context) (authz.TenantBinding, error) {
			return binder.Acquire(ctx)
		}),
	}
	authzMW := authz.Middleware{
		Pipeline: stages.Pipeline(),
		Allowed:  allowlist,
		Audit:    auditSvc,
	}

	handlers := httpapi.Handlers{
		Auth:        authManager,
		Users:       users,
		Credentials: identity.NewBcryptVerifier(db),
		Lockouts:    lockouts,
		Revocations: revocations,
		Memberships: memberships,
		Audit:       auditSvc,
		Invoices:    invoicing.NewService(db),
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, authzMW.Handler(), handlers)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
