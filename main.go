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

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sirenwatch/siren-backend/internal/alert"
	"github.com/sirenwatch/siren-backend/internal/auth"
	"github.com/sirenwatch/siren-backend/internal/config"
	"github.com/sirenwatch/siren-backend/internal/db"
	"github.com/sirenwatch/siren-backend/internal/districts"
	"github.com/sirenwatch/siren-backend/internal/logging"
	"github.com/sirenwatch/siren-backend/internal/middleware"
	"github.com/sirenwatch/siren-backend/internal/relay"
	"github.com/sirenwatch/siren-backend/internal/sirens"
	"github.com/sirenwatch/siren-backend/internal/webhooks"
)

func RootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "Server is up!")
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logCloser, err := logging.Setup(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	slog.Info("starting siren backend",
		"port", cfg.Port,
		"log_level", cfg.LogLevel,
		"default_language", cfg.DefaultLanguage,
		"clear_playing_on_disconnect", cfg.ClearPlayingOnDisconnect,
		"trust_proxy_headers", cfg.TrustProxyHeaders,
	)

	if err := db.Connect(cfg.DatabaseURL); err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}

	inits := []struct {
		name string
		fn   func() error
	}{
		{"auth", func() error { return auth.Init(cfg.SessionTTL) }},
		{"sirens", sirens.Init},
		{"districts", districts.Init},
		{"webhooks", webhooks.Init},
	}
	for _, m := range inits {
		if err := m.fn(); err != nil {
			slog.Error("module init failed", "module", m.name, "error", err)
			os.Exit(1)
		}
	}

	hub := relay.NewHub(sirens.NewStore(db.DB), alert.NewNormalizer(cfg.DefaultLanguage), relay.Options{
		ClearPlayingOnDisconnect: cfg.ClearPlayingOnDisconnect,
		PersistTimeout:           cfg.PersistTimeout,
		SendBuffer:               cfg.SendBuffer,
		PingPeriod:               cfg.PingPeriod,
		PongWait:                 cfg.PongWait,
	})
	sessions := auth.SessionInfo{}
	limiter := middleware.NewLimiterPool(cfg.TriggerRateLimit, cfg.TriggerRateBurst)
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go limiter.Run(sweepCtx, time.Minute, 10*time.Minute)
	signedTriggers := webhooks.Middleware(cfg.TriggerWebhookSecret, webhooks.NewGormStore(db.DB))
	if cfg.TriggerWebhookSecret == "" {
		slog.Warn("TRIGGER_WEBHOOK_SECRET not set, alert triggers are accepted unsigned")
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	if cfg.TrustProxyHeaders {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.Get("/", RootHandler)
	r.Get("/ws", hub.ServeWS)
	r.Mount("/api/auth", auth.SetupRoutes())
	r.Mount("/api/sirens", sirens.SetupRoutes(sessions))
	r.Mount("/api/districts", districts.SetupRoutes(sessions))
	r.Mount("/api/controller", relay.SetupRoutes(hub, sessions, limiter, signedTriggers))

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("http shutdown failed", "error", err)
	}
	// Hijacked websocket connections outlive Shutdown; close them so their
	// sirens are marked inactive before the pool goes away.
	if err := hub.Close(ctx); err != nil {
		slog.Error("relay shutdown failed", "error", err)
	}
}
