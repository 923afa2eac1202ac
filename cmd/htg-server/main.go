// Package main runs the htg-server HTTP adaptor: a thin chi router exposing
// the elevation façade at /health and /v1/*.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/jcom-dev/htg/internal/config"
	"github.com/jcom-dev/htg/internal/httpapi"
	custommw "github.com/jcom-dev/htg/internal/middleware"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: config.LoadLogLevel()}))
	slog.SetDefault(logger)

	ctx := context.Background()
	svc, err := config.NewServiceFromEnv(ctx)
	if err != nil {
		log.Fatalf("failed to build elevation service: %v", err)
	}
	api := httpapi.New(svc)

	r := chi.NewRouter()
	r.Use(custommw.RequestID)
	r.Use(custommw.RealIP)
	r.Use(custommw.Logger)
	r.Use(custommw.Recoverer)
	r.Use(custommw.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", api.Health)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/elevation", api.GetElevation)
		r.Post("/elevations", api.GetElevationsBatch)
		r.Post("/preload", api.Preload)
		r.Get("/cache/stats", api.CacheStats)
	})

	addr := os.Getenv("HTG_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("starting htg-server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down htg-server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}
	slog.Info("htg-server exited")
}
