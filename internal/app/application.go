package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/MikhailRaia/files-sharing/internal/container"
	"github.com/MikhailRaia/files-sharing/internal/events"
	"github.com/MikhailRaia/files-sharing/internal/external"
	"github.com/MikhailRaia/files-sharing/internal/handler"
	"github.com/MikhailRaia/files-sharing/internal/httpclient"
	"github.com/MikhailRaia/files-sharing/internal/l10n"
	"github.com/MikhailRaia/files-sharing/internal/logger"
	"github.com/MikhailRaia/files-sharing/internal/middleware"
	"github.com/MikhailRaia/files-sharing/internal/model"
	"github.com/MikhailRaia/files-sharing/internal/mount"
	"github.com/MikhailRaia/files-sharing/internal/propagation"
	"github.com/MikhailRaia/files-sharing/internal/server"
	"github.com/MikhailRaia/files-sharing/internal/session"
	"github.com/MikhailRaia/files-sharing/internal/share"
	"github.com/MikhailRaia/files-sharing/internal/storage"
	"github.com/MikhailRaia/files-sharing/internal/user"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// Service names bound in the container.
const (
	ShareControllerService          = middleware.ShareControllerName
	ExternalSharesControllerService = middleware.ExternalSharesControllerName
	ShareAPIControllerService       = "ShareAPIController"
	CapabilitiesControllerService   = "CapabilitiesController"
	SessionControllerService        = "SessionController"
	MountsControllerService         = "MountsController"
	FederatedShareControllerService = "FederatedShareController"

	UserSessionService            = "UserSession"
	URLGeneratorService           = "URLGenerator"
	UserManagerService            = "UserManager"
	HTTPClientServiceService      = "HttpClientService"
	IsIncomingShareEnabledService = "IsIncomingShareEnabled"
	ExternalManagerService        = "ExternalManager"
	SharingCheckMiddlewareService = "SharingCheckMiddleware"
	MountProviderService          = "MountProvider"
	PropagationManagerService     = "PropagationManager"
	L10NService                   = "L10N"

	requestValue        = "Request"
	controllerNameValue = "ControllerName"
)

// Application is the files_sharing module: its container and the hooks it
// installs into the server.
type Application struct {
	srv       *server.Server
	container *container.Container

	poolMu sync.Mutex
	pool   *propagation.WorkerPool

	joins *joinTracker
}

// NewApplication registers the services of the sharing module.
func NewApplication(srv *server.Server) *Application {
	a := &Application{
		srv:       srv,
		container: container.New(server.AppName),
	}
	c := a.container

	srv.Loader.Register(external.StorageClass, external.NewRemoteStorage)

	// Controllers
	c.RegisterService(ShareControllerService, func(s *container.Scope) (any, error) {
		urls, err := container.Resolve[handler.LinkBuilder](s, URLGeneratorService)
		if err != nil {
			return nil, err
		}
		tr, err := container.Resolve[*l10n.Table](s, L10NService)
		if err != nil {
			return nil, err
		}
		return handler.NewShareController(srv.Shares, urls, srv.JWT, tr), nil
	})
	c.RegisterService(ExternalSharesControllerService, func(s *container.Scope) (any, error) {
		incoming, err := container.Resolve[bool](s, IsIncomingShareEnabledService)
		if err != nil {
			return nil, err
		}
		manager, err := container.Resolve[*external.Manager](s, ExternalManagerService)
		if err != nil {
			return nil, err
		}
		clients, err := container.Resolve[*httpclient.ClientService](s, HTTPClientServiceService)
		if err != nil {
			return nil, err
		}
		tr, err := container.Resolve[*l10n.Table](s, L10NService)
		if err != nil {
			return nil, err
		}
		return handler.NewExternalSharesController(incoming, manager, httpclient.NewHelper(clients), srv.Metrics, tr), nil
	})
	c.RegisterService(ShareAPIControllerService, func(s *container.Scope) (any, error) {
		sess, err := container.Resolve[*session.UserSession](s, UserSessionService)
		if err != nil {
			return nil, err
		}
		urls, err := container.Resolve[handler.LinkBuilder](s, URLGeneratorService)
		if err != nil {
			return nil, err
		}
		tr, err := container.Resolve[*l10n.Table](s, L10NService)
		if err != nil {
			return nil, err
		}
		return handler.NewShareAPIController(sess, srv.Shares, urls, srv.Metrics, tr), nil
	})
	c.RegisterService(CapabilitiesControllerService, func(s *container.Scope) (any, error) {
		return handler.NewCapabilitiesController(s.Container()), nil
	})
	c.RegisterService(SessionControllerService, func(s *container.Scope) (any, error) {
		users, err := container.Resolve[*user.Manager](s, UserManagerService)
		if err != nil {
			return nil, err
		}
		tr, err := container.Resolve[*l10n.Table](s, L10NService)
		if err != nil {
			return nil, err
		}
		return handler.NewSessionController(users, srv.Auth, tr), nil
	})
	c.RegisterService(MountsControllerService, func(s *container.Scope) (any, error) {
		sess, err := container.Resolve[*session.UserSession](s, UserSessionService)
		if err != nil {
			return nil, err
		}
		tr, err := container.Resolve[*l10n.Table](s, L10NService)
		if err != nil {
			return nil, err
		}
		return handler.NewMountsController(sess, srv.Bus, srv.MountProviders, tr), nil
	})
	c.RegisterService(FederatedShareControllerService, func(s *container.Scope) (any, error) {
		incoming, err := container.Resolve[bool](s, IsIncomingShareEnabledService)
		if err != nil {
			return nil, err
		}
		manager, err := container.Resolve[*external.Manager](s, ExternalManagerService)
		if err != nil {
			return nil, err
		}
		users, err := container.Resolve[*user.Manager](s, UserManagerService)
		if err != nil {
			return nil, err
		}
		tr, err := container.Resolve[*l10n.Table](s, L10NService)
		if err != nil {
			return nil, err
		}
		return handler.NewFederatedShareController(incoming, manager, users, tr), nil
	})

	// Core service wrappers
	c.RegisterService(UserSessionService, func(s *container.Scope) (any, error) {
		return session.FromContext(s.Context()), nil
	})
	c.RegisterService(URLGeneratorService, func(s *container.Scope) (any, error) {
		return srv.URLs, nil
	})
	c.RegisterService(UserManagerService, func(s *container.Scope) (any, error) {
		return srv.Users, nil
	})
	c.RegisterService(HTTPClientServiceService, func(s *container.Scope) (any, error) {
		return srv.HTTPClients, nil
	})
	c.RegisterService(IsIncomingShareEnabledService, func(s *container.Scope) (any, error) {
		return srv.Config.Sharing.IncomingServer2Srv, nil
	})
	c.RegisterService(ExternalManagerService, func(s *container.Scope) (any, error) {
		sess, err := container.Resolve[*session.UserSession](s, UserSessionService)
		if err != nil {
			return nil, err
		}
		return external.NewManager(srv.Storage, srv.Mounts, srv.Loader, srv.HTTPHelper, srv.Notifications, sess.UID()), nil
	})
	c.RegisterService(L10NService, func(s *container.Scope) (any, error) {
		r, err := container.Resolve[*http.Request](s, requestValue)
		if err != nil {
			return srv.Translator(""), nil
		}
		return srv.Translator(r.Header.Get("Accept-Language")), nil
	})
	c.RegisterParameter(controllerNameValue, "")

	// Middleware
	c.RegisterService(SharingCheckMiddlewareService, func(s *container.Scope) (any, error) {
		appName, err := container.Resolve[string](s, "AppName")
		if err != nil {
			return nil, err
		}
		sess, err := container.Resolve[*session.UserSession](s, UserSessionService)
		if err != nil {
			return nil, err
		}
		controller, err := container.Resolve[string](s, controllerNameValue)
		if err != nil {
			return nil, err
		}
		tr, err := container.Resolve[*l10n.Table](s, L10NService)
		if err != nil {
			return nil, err
		}
		return middleware.NewSharingCheckMiddleware(appName, srv.Apps, srv.Config.Sharing, sess, controller, tr), nil
	})
	c.RegisterMiddleware(SharingCheckMiddlewareService)

	// Application-level singletons live in the root scope.
	a.registerShared(MountProviderService, func(s *container.Scope) (any, error) {
		pm, err := container.Resolve[*propagation.Manager](s, PropagationManagerService)
		if err != nil {
			return nil, err
		}
		return mount.NewShareProvider(srv.Shares, pm, srv.Config.Sharing.ShareFolder), nil
	})
	a.registerShared(PropagationManagerService, func(s *container.Scope) (any, error) {
		pm := propagation.NewManager(srv.Preferences, srv.Bus)
		if srv.Config.Propagation.Async {
			a.startPool(pm)
		}
		return pm, nil
	})

	c.RegisterCapability(share.NewCapabilities(srv.Config.Sharing))

	return a
}

// Container exposes the registry, mainly for tests and tooling.
func (a *Application) Container() *container.Container {
	return a.container
}

// registerShared binds name to a service built once in the root scope and
// handed to every request scope.
func (a *Application) registerShared(name string, f container.Factory) {
	a.container.RegisterService(name, func(s *container.Scope) (any, error) {
		root := s.Container().Root()
		if s == root {
			return f(s)
		}
		return root.Query(name)
	})
}

func (a *Application) startPool(pm *propagation.Manager) {
	cfg := a.srv.Config.Propagation
	pool := propagation.NewWorkerPool(pm, propagation.Config{
		WorkerCount:  cfg.Workers,
		BufferSize:   cfg.BufferSize,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout.Duration,
	})
	pool.Start()
	pm.AttachPool(pool)

	a.poolMu.Lock()
	a.pool = pool
	a.poolMu.Unlock()
}

// RegisterMountProviders adds the share mount provider to the server's
// provider collection.
func (a *Application) RegisterMountProviders(ctx context.Context) error {
	provider, err := container.Resolve[mount.Provider](a.container.Root(), MountProviderService)
	if err != nil {
		return fmt.Errorf("resolve mount provider: %w", err)
	}
	a.srv.MountProviders.RegisterProvider(provider)
	return nil
}

// SetupPropagation connects the propagation manager to the filesystem
// setup hook and propagates shares a user gains by joining a group.
func (a *Application) SetupPropagation(ctx context.Context) error {
	pm, err := container.Resolve[*propagation.Manager](a.container.Root(), PropagationManagerService)
	if err != nil {
		return fmt.Errorf("resolve propagation manager: %w", err)
	}

	bus := a.srv.Bus
	shares := a.srv.Shares
	tracker := newJoinTracker()
	a.joins = tracker

	bus.Subscribe(events.FilesystemSetup, pm.GlobalSetup)

	bus.Subscribe(events.GroupPreAddUser, events.Typed(func(ctx context.Context, m events.GroupMembership) error {
		before, err := mountableSharedWith(ctx, shares, m.User.UID)
		if err != nil {
			return err
		}
		tracker.remember(m.Group.GID, m.User.UID, before)
		storage.OnRollback(ctx, func() {
			tracker.take(m.Group.GID, m.User.UID)
		})
		return nil
	}))

	bus.Subscribe(events.GroupPostAddUser, events.Typed(func(ctx context.Context, m events.GroupMembership) error {
		before, ok := tracker.take(m.Group.GID, m.User.UID)
		if !ok {
			log.Warn().Str("gid", m.Group.GID).Str("uid", m.User.UID).Msg("No shares recorded before group join")
		}
		after, err := mountableSharedWith(ctx, shares, m.User.UID)
		if err != nil {
			return err
		}
		return pm.PropagateSharesToUser(ctx, share.NewlyShared(before, after), m.User.UID)
	}))

	bus.Subscribe(events.PropagationChanged, a.srv.Metrics.ObservePropagation)
	return nil
}

// mountableSharedWith returns the file and folder shares uid receives, the
// same set the share mount provider mounts.
func mountableSharedWith(ctx context.Context, shares *share.Service, uid string) ([]model.Share, error) {
	all, err := shares.ItemsSharedWithUser(ctx, "", uid)
	if err != nil {
		return nil, err
	}

	result := make([]model.Share, 0, len(all))
	for _, s := range all {
		if s.IsFileLike() {
			result = append(result, s)
		}
	}
	return result, nil
}

// Handler routes requests to the controllers. Each request gets its own
// scope; the registered middleware runs around the controller action.
func (a *Application) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(logger.RequestLogger)
	r.Use(a.srv.Metrics.Middleware)
	r.Use(a.srv.Auth.LoadSession)

	r.Post("/login", controllerRoute(a, SessionControllerService, func(c *handler.SessionController) http.HandlerFunc { return c.Login }))
	r.Post("/logout", controllerRoute(a, SessionControllerService, func(c *handler.SessionController) http.HandlerFunc { return c.Logout }))

	r.Get("/s/{token}", controllerRoute(a, ShareControllerService, func(c *handler.ShareController) http.HandlerFunc { return c.ShowShare }))
	r.Post("/s/{token}/authenticate", controllerRoute(a, ShareControllerService, func(c *handler.ShareController) http.HandlerFunc { return c.Authenticate }))

	r.Get("/testremote", controllerRoute(a, ExternalSharesControllerService, func(c *handler.ExternalSharesController) http.HandlerFunc { return c.TestRemote }))
	r.Post("/ocs/v1.php/cloud/shares", controllerRoute(a, FederatedShareControllerService, func(c *handler.FederatedShareController) http.HandlerFunc { return c.Receive }))

	r.Route("/api", func(r chi.Router) {
		r.Get("/capabilities", controllerRoute(a, CapabilitiesControllerService, func(c *handler.CapabilitiesController) http.HandlerFunc { return c.Show }))

		r.Group(func(r chi.Router) {
			r.Use(a.srv.Auth.RequireAuth)

			r.Get("/shares", controllerRoute(a, ShareAPIControllerService, func(c *handler.ShareAPIController) http.HandlerFunc { return c.List }))
			r.Post("/shares", controllerRoute(a, ShareAPIControllerService, func(c *handler.ShareAPIController) http.HandlerFunc { return c.Create }))
			r.Delete("/shares/{id}", controllerRoute(a, ShareAPIControllerService, func(c *handler.ShareAPIController) http.HandlerFunc { return c.Delete }))

			r.Get("/externalShares", controllerRoute(a, ExternalSharesControllerService, func(c *handler.ExternalSharesController) http.HandlerFunc { return c.Index }))
			r.Post("/externalShares/{id}", controllerRoute(a, ExternalSharesControllerService, func(c *handler.ExternalSharesController) http.HandlerFunc { return c.Accept }))
			r.Delete("/externalShares/{id}", controllerRoute(a, ExternalSharesControllerService, func(c *handler.ExternalSharesController) http.HandlerFunc { return c.Decline }))

			r.Get("/mounts", controllerRoute(a, MountsControllerService, func(c *handler.MountsController) http.HandlerFunc { return c.List }))
		})
	})

	r.Handle("/metrics", a.srv.Metrics.Handler())

	return r
}

func controllerRoute[C any](a *Application, name string, action func(C) http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope := a.container.NewScope(r.Context())
		scope.Set(requestValue, r)
		scope.Set(controllerNameValue, name)

		controller, err := container.Resolve[C](scope, name)
		if err != nil {
			log.Error().Err(err).Str("controller", name).Msg("Failed to build controller")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		h, err := scope.Chain(action(controller))
		if err != nil {
			log.Error().Err(err).Str("controller", name).Msg("Failed to build middleware chain")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		h.ServeHTTP(w, r)
	}
}

// Close stops the propagation pool, flushing queued marks.
func (a *Application) Close(timeout time.Duration) error {
	a.poolMu.Lock()
	pool := a.pool
	a.poolMu.Unlock()

	if pool == nil {
		return nil
	}
	return pool.Shutdown(timeout)
}
