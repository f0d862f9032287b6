// Package server собирает сервер репликации: хранилище, сервисы
// коллекций, шину событий, трекер присутствия и HTTP-поверхность.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/iudanet/doorsync/internal/server/auth"
	"github.com/iudanet/doorsync/internal/server/config"
	"github.com/iudanet/doorsync/internal/server/handlers"
	"github.com/iudanet/doorsync/internal/server/middleware"
	"github.com/iudanet/doorsync/internal/server/presence"
	"github.com/iudanet/doorsync/internal/server/replica"
	"github.com/iudanet/doorsync/internal/server/storage/sqlite"
	"github.com/iudanet/doorsync/internal/server/stream"
)

const shutdownTimeout = 10 * time.Second

// App owns the wired server and its lifecycle.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	storage *sqlite.Storage
	bus     *stream.Bus
	httpSrv *http.Server
	handler http.Handler
	version string
}

// NewApp открывает хранилище и собирает все компоненты сервера.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, version string) (*App, error) {
	store, err := sqlite.New(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("storage init: %w", err)
	}

	authCfg := auth.Config{
		Secret:         []byte(cfg.SecretKey),
		EnrollKey:      cfg.EnrollKey,
		AccessTokenTTL: cfg.AccessTokenTTL,
	}

	bus := stream.NewBus(logger)
	tracker := presence.NewTracker(store.Doors(), logger)
	clock := replica.NewClock()

	repl := handlers.NewReplicationHandler(logger,
		replica.NewCheckInService(store.CheckIns(), bus, clock, logger),
		replica.NewDoorService(store.Doors(), bus, clock, logger),
		replica.NewHandshakeService(store.Handshakes(), bus, clock, logger),
		replica.NewClientLogService(store.ClientLogs(), bus, clock, logger),
	)
	tokens := handlers.NewTokenHandler(logger, authCfg)
	health := handlers.NewHealthHandler(logger, store.DB(), version)
	live := handlers.NewStreamHandler(logger, bus, tracker)

	authMW := middleware.AuthMiddleware(logger, authCfg)
	// Enroll-ключ общий, эндпоинт открыт: перебор сдерживает rate limit.
	enrollMW := middleware.RateLimitMiddleware(10, time.Minute, logger)

	mux := http.NewServeMux()
	mux.Handle("POST /api/v1/auth/token", enrollMW(http.HandlerFunc(tokens.IssueToken)))
	mux.Handle("POST /api/v1/pull/{collection}", authMW(http.HandlerFunc(repl.Pull)))
	mux.Handle("POST /api/v1/push/{collection}", authMW(http.HandlerFunc(repl.Push)))
	mux.Handle("GET /api/v1/stream/{collection}", authMW(http.HandlerFunc(live.Stream)))
	mux.HandleFunc("GET /api/v1/health", health.Health)

	handler := middleware.LoggingMiddleware(logger, "/api/v1/health")(
		middleware.RecoveryMiddleware(logger)(mux))

	return &App{
		cfg:     cfg,
		logger:  logger,
		storage: store,
		bus:     bus,
		handler: handler,
		version: version,
		httpSrv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Handler возвращает корневой HTTP-обработчик. Используется в тестах.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Run поднимает HTTP-сервер и останавливает его по отмене контекста.
func (a *App) Run(ctx context.Context) error {
	errC := make(chan error, 1)
	go func() {
		a.logger.Info("server listening", "addr", a.cfg.Addr, "version", a.version)
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errC <- err
		}
	}()

	select {
	case err := <-errC:
		a.Close()
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.httpSrv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("shutdown failed", "error", err)
	}
	a.Close()
	return nil
}

// Close освобождает ресурсы: шину событий и хранилище.
func (a *App) Close() {
	a.bus.Close()
	if err := a.storage.Close(); err != nil {
		a.logger.Error("failed to close storage", "error", err)
	}
}
