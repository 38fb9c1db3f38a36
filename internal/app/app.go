// Package app wires the files_sharing module into a runnable HTTP service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/MikhailRaia/files-sharing/internal/config"
	"github.com/MikhailRaia/files-sharing/internal/l10n"
	"github.com/MikhailRaia/files-sharing/internal/server"
	"github.com/MikhailRaia/files-sharing/internal/storage"
	"github.com/MikhailRaia/files-sharing/internal/storage/file"
	"github.com/MikhailRaia/files-sharing/internal/storage/memory"
	"github.com/MikhailRaia/files-sharing/internal/storage/postgres"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config      *config.Config
	storage     storage.Storage
	application *Application
	handler     http.Handler
}

func NewApp(cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := openStorage(cfg)
	if err != nil {
		return nil, err
	}

	var prefs storage.PreferenceStorage = store
	if cfg.PreferencesPath != "" {
		fileStore, err := file.NewStorage(cfg.PreferencesPath)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("open preferences: %w", err)
		}
		log.Info().Str("path", cfg.PreferencesPath).Msg("Using file preference storage")
		prefs = fileStore
	}

	bundle, err := l10n.LoadEmbedded()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("load translations: %w", err)
	}

	srv := server.New(cfg, store, prefs, bundle, nil)
	application := NewApplication(srv)

	ctx := context.Background()
	if err := application.RegisterMountProviders(ctx); err != nil {
		store.Close()
		return nil, err
	}
	if err := application.SetupPropagation(ctx); err != nil {
		store.Close()
		return nil, err
	}

	if cfg.SeedPath != "" {
		dir, err := LoadDirectory(cfg.SeedPath)
		if err == nil {
			err = Seed(ctx, srv, dir)
		}
		if err != nil {
			_ = application.Close(0)
			store.Close()
			return nil, err
		}
	}

	return &App{
		config:      cfg,
		storage:     store,
		application: application,
		handler:     application.Handler(),
	}, nil
}

func openStorage(cfg *config.Config) (storage.Storage, error) {
	if cfg.DatabaseDSN != "" {
		log.Info().Msg("Using PostgreSQL storage")
		store, err := postgres.NewStorage(cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		return store, nil
	}

	log.Info().Msg("Using memory storage")
	return memory.NewStorage(), nil
}

func (a *App) Handler() http.Handler {
	return a.handler
}

// Run serves HTTP until SIGINT or SIGTERM, then shuts down gracefully.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:    a.config.ServerAddress,
		Handler: a.handler,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("address", a.config.ServerAddress).Str("baseURL", a.config.BaseURL).Msg("Starting server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		a.Close()
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := httpServer.Shutdown(shutdownCtx)
	a.Close()
	return err
}

// Close flushes pending propagation marks and releases storage.
func (a *App) Close() {
	if err := a.application.Close(shutdownTimeout); err != nil {
		log.Error().Err(err).Msg("Propagation pool did not drain")
	}
	a.storage.Close()
}
