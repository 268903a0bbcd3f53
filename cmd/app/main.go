package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"

	"branchbooker/internal/availability"
	"branchbooker/internal/config"
	availGet "branchbooker/internal/http-server/handlers/availability/get"
	bookingCancel "branchbooker/internal/http-server/handlers/bookings/cancel"
	bookingGet "branchbooker/internal/http-server/handlers/bookings/get"
	branchGet "branchbooker/internal/http-server/handlers/branches/get"
	sessionClose "branchbooker/internal/http-server/handlers/sessions/close"
	sessionCreate "branchbooker/internal/http-server/handlers/sessions/create"
	sessionGet "branchbooker/internal/http-server/handlers/sessions/get"
	sessionSelect "branchbooker/internal/http-server/handlers/sessions/selectslot"
	sessionSubmit "branchbooker/internal/http-server/handlers/sessions/submit"
	sessionWeek "branchbooker/internal/http-server/handlers/sessions/week"
	staffDay "branchbooker/internal/http-server/handlers/staff/daybookings"
	svc "branchbooker/internal/service"
	"branchbooker/internal/session"
	"branchbooker/internal/storage/postgres"
	"branchbooker/internal/upstream"
	"branchbooker/pkg/handlers/slogpretty"
	"branchbooker/pkg/middleware/mwLogger"
	"branchbooker/pkg/sl"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Idempotency-Key")
		w.Header().Set("Content-Type", "application/json; charset=utf-8")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {

	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("Starting API", slog.String("env", cfg.Env))
	log.Debug("Debug messages are enabled")

	storage, err := postgres.New(cfg.StoragePath)
	if err != nil {
		log.Error("Failed to init storage", sl.Err(err))
		os.Exit(1)
	}

	cache, err := availability.NewRedisCache(cfg.Redis.Address)
	if err != nil {
		log.Error("Failed to init redis cache", sl.Err(err))
		os.Exit(1)
	}

	client := upstream.New(cfg.Upstream.BaseURL, cfg.Upstream.Timeout)
	loader := availability.NewLoader(client, cache, cfg.Redis.CacheTTL, log)
	sessions := session.NewRegistry(cfg.Booking.SessionTTL, log)

	service := svc.NewService(client, client, loader, storage, sessions, cfg.Booking.SlotMinutes)

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(mwLogger.New(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)
	router.Use(CORS)

	// Branches
	router.Get("/branches", branchGet.New(log, service))
	router.Get("/branches/{branchID}/grid", availGet.New(log, service))
	router.Get("/branches/{branchID}/bookings", staffDay.New(log, service))

	// Sessions
	router.Post("/sessions", sessionCreate.New(log, service))
	router.Get("/sessions/{id}/grid", sessionGet.New(log, service))
	router.Post("/sessions/{id}/week", sessionWeek.New(log, service))
	router.Post("/sessions/{id}/select", sessionSelect.New(log, service))
	router.Post("/sessions/{id}/submit", sessionSubmit.New(log, service))
	router.Delete("/sessions/{id}", sessionClose.New(log, service))

	// Bookings
	router.Get("/bookings/{id}", bookingGet.New(log, service))
	router.Put("/bookings/{id}/cancel", bookingCancel.New(log, service))

	serv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	serverErrCh := make(chan error, 1)

	go func() {
		log.Info("Starting HTTP server", slog.String("addr", cfg.HTTPServer.Address))
		if err := serv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		} else {
			serverErrCh <- nil
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case err := <-serverErrCh:
		if err != nil {
			log.Error("HTTP server stopped unexpectedly", sl.Err(err))
		} else {
			log.Info("HTTP server stopped gracefully")
		}
	}

	shutdownTimeout := cfg.HTTPServer.ShutdownTimeout

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	log.Info("Shutting down HTTP server", slog.String("timeout", shutdownTimeout.String()))

	if err := serv.Shutdown(ctx); err != nil {
		log.Error("Server shutdown failed", sl.Err(err))
	} else {
		log.Info("Server shutdown complete")
	}

	sessions.Close()
	log.Info("Session registry stopped")

	if err := storage.Close(); err != nil {
		log.Error("Failed to close storage", sl.Err(err))
	} else {
		log.Info("Storage closed")
	}

	if err := cache.Close(); err != nil {
		log.Error("Failed to close redis cache", sl.Err(err))
	} else {
		log.Info("Redis cache closed")
	}

	log.Info("Shutdown finished, server stopped")

}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger
	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}
