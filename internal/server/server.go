// Package server holds the process-wide services every app of the instance
// shares: storage, hooks, users, groups, mounts and outgoing HTTP.
package server

import (
	"github.com/MikhailRaia/files-sharing/internal/appmanager"
	"github.com/MikhailRaia/files-sharing/internal/auth"
	"github.com/MikhailRaia/files-sharing/internal/config"
	"github.com/MikhailRaia/files-sharing/internal/events"
	"github.com/MikhailRaia/files-sharing/internal/group"
	"github.com/MikhailRaia/files-sharing/internal/httpclient"
	"github.com/MikhailRaia/files-sharing/internal/l10n"
	"github.com/MikhailRaia/files-sharing/internal/metrics"
	"github.com/MikhailRaia/files-sharing/internal/middleware"
	"github.com/MikhailRaia/files-sharing/internal/mount"
	"github.com/MikhailRaia/files-sharing/internal/notification"
	"github.com/MikhailRaia/files-sharing/internal/share"
	"github.com/MikhailRaia/files-sharing/internal/storage"
	"github.com/MikhailRaia/files-sharing/internal/urlgen"
	"github.com/MikhailRaia/files-sharing/internal/user"
	"github.com/prometheus/client_golang/prometheus"
)

// AppName is the name the sharing app is installed under.
const AppName = "files_sharing"

type Server struct {
	Config      *config.Config
	Storage     storage.Storage
	Preferences storage.PreferenceStorage
	Bus         *events.Bus

	Users  *user.Manager
	Groups *group.Manager
	Shares *share.Service
	Apps   *appmanager.Manager

	Mounts         *mount.Manager
	Loader         *mount.Loader
	MountProviders *mount.Collection

	HTTPClients   *httpclient.ClientService
	HTTPHelper    *httpclient.Helper
	Notifications *notification.Manager

	JWT     *auth.JWTService
	Auth    *middleware.AuthMiddleware
	Metrics *metrics.Metrics
	L10N    *l10n.Bundle
	URLs    *urlgen.Generator
}

// New builds the server services on top of store. Preferences are kept in
// prefs, which may be store itself. A nil reg gets a private registry.
func New(cfg *config.Config, store storage.Storage, prefs storage.PreferenceStorage, bundle *l10n.Bundle, reg *prometheus.Registry) *Server {
	if prefs == nil {
		prefs = store
	}

	bus := events.NewBus()
	users := user.NewManager(store)
	groups := group.NewManager(store, store, store, bus)
	jwtService := auth.NewJWTService(cfg.JWTSecret)
	clients := httpclient.NewClientService(cfg.HTTPClient.Timeout.Duration)

	apps := appmanager.NewManager(groups)
	if cfg.Sharing.Enabled {
		apps.Enable(AppName)
	}

	return &Server{
		Config:         cfg,
		Storage:        store,
		Preferences:    prefs,
		Bus:            bus,
		Users:          users,
		Groups:         groups,
		Shares:         share.NewService(store, groups, users, cfg.Sharing),
		Apps:           apps,
		Mounts:         mount.NewManager(),
		Loader:         mount.NewLoader(),
		MountProviders: mount.NewCollection(),
		HTTPClients:    clients,
		HTTPHelper:     httpclient.NewHelper(clients),
		Notifications:  notification.NewManager(),
		JWT:            jwtService,
		Auth:           middleware.NewAuthMiddleware(jwtService, users),
		Metrics:        metrics.New(reg),
		L10N:           bundle,
		URLs:           urlgen.New(cfg.BaseURL),
	}
}

// Translator picks the table for an Accept-Language header, using the
// configured default locale when the header is empty.
func (s *Server) Translator(acceptLanguage string) *l10n.Table {
	if s.L10N == nil {
		return nil
	}
	if acceptLanguage == "" {
		if t, ok := s.L10N.Table(s.Config.DefaultLocale); ok {
			return t
		}
		return s.L10N.Base()
	}
	return s.L10N.Match(acceptLanguage)
}
