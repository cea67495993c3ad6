package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"sqlchat/cmd"
	"sqlchat/internal/metrics"
)

const sweepInterval = 10 * time.Minute

// NewRouter wires the web pages, the JSON API and the operational endpoints.
func NewRouter(rt *cmd.Runtime) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	// Leave room past the question timeout so the dispatcher reports it first.
	r.Use(middleware.Timeout(rt.Settings.QuestionTimeout + 15*time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"sessions": rt.Sessions.Len(),
		})
	})
	r.Handle("/metrics", metrics.Handler())

	// Web handlers (HTMX HTML responses)
	webHandler := NewWebHandler(rt)
	r.Get("/", webHandler.ChatPage)
	r.Post("/settings", webHandler.Settings)
	r.Post("/chat", webHandler.Chat)
	r.Get("/chat/stream", webHandler.Stream)
	r.Post("/clear", webHandler.Clear)

	// API handlers (JSON responses)
	apiHandler := NewAPIHandler(rt)
	r.Route("/api", func(r chi.Router) {
		r.Post("/connect", apiHandler.Connect)
		r.Post("/chat", apiHandler.Chat)
		r.Get("/history", apiHandler.History)
		r.Delete("/history", apiHandler.ClearHistory)
	})

	return r
}

// startServer initializes and starts the HTTP server
func startServer(rt *cmd.Runtime, addr string) error {
	logger = rt.Logger

	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(rt),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sweepSessions(ctx, rt)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown failed", "error", err)
		}
	}()

	log.Printf("Starting server on http://localhost%s", addr)
	logger.Info("Server starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("Server stopped")
	return nil
}

// sweepSessions drops idle conversations and expired database handles until ctx is
// cancelled.
func sweepSessions(ctx context.Context, rt *cmd.Runtime) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep(rt)
		}
	}
}

func sweep(rt *cmd.Runtime) {
	if n := rt.Sessions.Sweep(); n > 0 {
		rt.Logger.Info("Swept idle sessions", "count", n)
	}
	if n := rt.Handles.Sweep(); n > 0 {
		rt.Logger.Info("Evicted expired database handles", "count", n)
	}
}
