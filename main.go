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

	gh "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/samber/lo"

	"github.com/pliu/quachat/internal/chats"
	"github.com/pliu/quachat/internal/config"
	"github.com/pliu/quachat/internal/handlers"
	"github.com/pliu/quachat/internal/identity"
	"github.com/pliu/quachat/internal/logs"
	"github.com/pliu/quachat/internal/membership"
	"github.com/pliu/quachat/internal/messages"
	"github.com/pliu/quachat/internal/metrics"
	"github.com/pliu/quachat/internal/middleware"
	"github.com/pliu/quachat/internal/rpc"
	"github.com/pliu/quachat/internal/store/sqlstore"
	"github.com/pliu/quachat/internal/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logs.New(os.Stdout, cfg.LogLevel)

	// Initialize Database
	store, err := sqlstore.New(cfg.DBDriver, cfg.DBURI)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.DBDriver, err)
	}
	defer store.Close()

	names := identity.NewNameGenerator(nil, identity.Weights{
		SecondName: cfg.NameSecondName,
		Underscore: cfg.NameUnderscore,
		Lowercase:  cfg.NameLowercase,
		Suffix:     cfg.NameSuffix,
	}, nil)
	ids := identity.New(store, names, log)
	msgs := messages.New(store, nil, log)
	ledger := membership.New(store, msgs, log)
	registry := chats.New(store, ledger, msgs, cfg.SearchLimit, log)

	var (
		observer rpc.Observer
		gauge    ws.Gauge
		m        *metrics.Metrics
	)
	if cfg.MetricsEnabled {
		m = metrics.New()
		observer, gauge = m, m
	}

	api := handlers.NewAPI(ids, registry, ledger, msgs, observer, cfg.MaxBodyBytes, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize WebSocket Hub
	origins := cfg.Origins()
	hub := ws.NewHub(api.Dispatcher, checkOrigin(origins), gauge, log)
	go hub.Run(ctx)

	r := mux.NewRouter()
	r.Use(middleware.LoggingMiddleware(log))
	r.Use(middleware.AuthMiddleware(ids, log))

	// API Endpoints
	r.Handle("/api", api)
	r.HandleFunc("/ws", hub.ServeWs).Methods(http.MethodGet)
	if m != nil {
		r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	}

	cors := gh.CORS(
		gh.AllowedOrigins(origins),
		gh.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		gh.AllowedHeaders([]string{"Authorization", "Content-Type"}),
	)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           cors(r),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting server", "addr", cfg.Addr, "driver", cfg.DBDriver)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// checkOrigin mirrors the CORS origin list for websocket upgrades. "*" allows any.
func checkOrigin(origins []string) func(r *http.Request) bool {
	if lo.Contains(origins, "*") {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || lo.Contains(origins, origin)
	}
}
