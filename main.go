package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/parisxmas/fsdash/internal/auth"
	"github.com/parisxmas/fsdash/internal/config"
	"github.com/parisxmas/fsdash/internal/handler"
	"github.com/parisxmas/fsdash/internal/logger"
	"github.com/parisxmas/fsdash/internal/router"
	"github.com/parisxmas/fsdash/internal/service"
	"github.com/parisxmas/fsdash/internal/session"
	"github.com/parisxmas/fsdash/internal/upstream"
	"github.com/parisxmas/fsdash/internal/views"
	"github.com/parisxmas/fsdash/internal/web"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fsdash: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logging, cfg.App.Name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fsdash: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Session store
	var store session.Store
	switch cfg.Session.Store {
	case config.StoreRedis:
		rs := session.NewRedisStore(session.NewRedisClient(cfg.Session.Redis))
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rs.Ping(ctx)
		cancel()
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.String("addr", cfg.Session.Redis.Address), zap.Error(err))
		}
		defer rs.Close()
		store = rs
		log.Info("Session store: redis", zap.String("addr", cfg.Session.Redis.Address))
	default:
		store = session.NewMemoryStore()
		log.Info("Session store: memory")
	}

	clients := service.NewClients(cfg.API.Timeout, log)

	// Credential check
	var verifier session.Verifier
	switch cfg.Auth.Mode {
	case config.AuthModePassword:
		verifier = &auth.PasswordVerifier{
			Username:     cfg.Auth.Username,
			PasswordHash: cfg.Auth.PasswordHash,
			APIURL:       cfg.API.URL,
			APIKey:       cfg.API.Key,
		}
	default:
		verifier = auth.NewAPIKeyVerifier(cfg.API.AllowedURLs, clients.Options()...)
	}
	log.Info("Auth mode", zap.String("mode", cfg.Auth.Mode))

	sessions, err := session.NewManager(store, verifier, cfg.Session.KeyPrefix, cfg.Auth.SessionTTL)
	if err != nil {
		log.Fatal("Failed to create session manager", zap.Error(err))
	}

	pages, err := web.NewRenderer()
	if err != nil {
		log.Fatal("Failed to parse templates", zap.Error(err))
	}

	// Background health probe of the configured service
	var monitor *upstream.Monitor
	if cfg.API.URL != "" {
		monitor = upstream.NewMonitor(clients.New(cfg.API.URL, cfg.API.Key), cfg.Monitor.Interval, log)
		monitor.Start()
		defer monitor.Close()
	}

	// Services
	guard := views.NewGuard()
	subSvc := service.NewSubmissionService(clients, views.NewRegistry(), guard, cfg.List.DefaultLimit, log)
	sessions.OnLogout(subSvc.Forget)
	authSvc := service.NewAuthService(sessions, log)

	// Handlers
	base := &handler.Base{Pages: pages, Auth: authSvc, Log: log}
	r := router.New(cfg.Auth.SessionSecret, sessions, router.Handlers{
		Auth:        handler.NewAuthHandler(base, cfg.Auth, cfg.API, monitor),
		Dashboard:   handler.NewDashboardHandler(base, subSvc),
		Submissions: handler.NewSubmissionHandler(base, subSvc, guard, cfg.Server.RefreshInterval),
		Export:      handler.NewExportHandler(base, subSvc),
		Health:      handler.NewHealthHandler(monitor),
	}, log)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("FSDash server starting", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Graceful shutdown failed", zap.Error(err))
	}
}
