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

	"github.com/gorilla/mux"

	"github.com/inamate/imageboard/internal/asset"
	"github.com/inamate/imageboard/internal/autosave"
	"github.com/inamate/imageboard/internal/config"
	"github.com/inamate/imageboard/internal/db"
	"github.com/inamate/imageboard/internal/export"
	mw "github.com/inamate/imageboard/internal/middleware"
	"github.com/inamate/imageboard/internal/project"
	"github.com/inamate/imageboard/internal/raster"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, closeRepo := openRepository(ctx, cfg)
	defer closeRepo()

	fonts, err := raster.NewFontMeasurer()
	if err != nil {
		slog.Error("load fonts", "error", err)
		os.Exit(1)
	}

	hub := autosave.NewHub(repo, cfg.AutosaveInterval)
	go hub.Run()

	projectHandler := project.NewHandler(repo, cfg.MaxUploadBytes())
	assetHandler := asset.NewHandler(cfg.AssetDir, cfg.MaxUploadBytes())
	exportHandler := export.NewHandler(fonts, cfg.ExportPrefixWidth, cfg.MaxUploadBytes())

	r := mux.NewRouter()

	r.Use(mw.Recovery)
	r.Use(mw.Logger)
	r.Use(mw.CORS(cfg.Origins()))
	r.Use(mw.SecurityHeaders)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	r.HandleFunc("/assets/upload", assetHandler.Upload).Methods("POST", "OPTIONS")
	r.PathPrefix("/assets/").Handler(assetHandler.Serve()).Methods("GET")

	r.HandleFunc("/export/zip", exportHandler.ExportZip).Methods("POST", "OPTIONS")

	projectHandler.Register(r.PathPrefix("/api").Subrouter())

	r.HandleFunc("/ws/autosave/{projectId}", hub.ServeWS(cfg.Origins()))

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server")

		// Pending autosaves are written before connections drop.
		hub.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown", "error", err)
		}
	}()

	slog.Info("server starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

// openRepository uses Postgres when it is reachable and falls back to an
// in-memory store otherwise.
func openRepository(ctx context.Context, cfg *config.Config) (project.Repository, func()) {
	if cfg.DatabaseURL == "" {
		slog.Warn("no database configured, projects are kept in memory")
		return project.NewMemoryStore(), func() {}
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Warn("database unavailable, projects are kept in memory", "error", err)
		return project.NewMemoryStore(), func() {}
	}

	store := project.NewPGStore(pool)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		slog.Warn("migrate projects table, projects are kept in memory", "error", err)
		return project.NewMemoryStore(), func() {}
	}
	return store, pool.Close
}
