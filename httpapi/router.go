package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/logging"
	"github.com/MrEthical07/goSession/middleware"
	"github.com/MrEthical07/goSession/userstore"
)

// Options configures NewRouter.
type Options struct {
	Engine *goSession.Engine
	Users  userstore.Store
	// Connections defaults to Users when it also implements
	// userstore.ConnectionStore. The /connections routes are not mounted
	// without one.
	Connections userstore.ConnectionStore
	Logger      *slog.Logger
	// AllowedOrigins is the CORS allow-list.
	AllowedOrigins []string
	// TrustProxy takes the client address from X-Forwarded-For.
	TrustProxy bool
	// Metrics is served at GET /metrics when set.
	Metrics http.Handler
}

type handlers struct {
	engine  *goSession.Engine
	users   userstore.Store
	conns   userstore.ConnectionStore
	cookies cookieJar
}

// NewRouter builds the HTTP surface.
func NewRouter(opts Options) (http.Handler, error) {
	if opts.Engine == nil {
		return nil, errors.New("httpapi: engine is required")
	}
	if opts.Users == nil {
		return nil, errors.New("httpapi: user store is required")
	}
	if opts.Connections == nil {
		opts.Connections, _ = opts.Users.(userstore.ConnectionStore)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	engine := opts.Engine
	cfg := engine.Config()
	policies := engine.Policies()
	h := &handlers{
		engine:  engine,
		users:   opts.Users,
		conns:   opts.Connections,
		cookies: newCookieJar(engine),
	}

	root := chi.NewRouter()
	root.Use(
		logging.HTTPMiddleware(logger),
		recoverer,
		securityHeaders(cfg.Security.ProductionMode),
		cors(opts.AllowedOrigins),
		middleware.Gate(middleware.ClientInfo(opts.TrustProxy)),
	)
	root.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteRejection(w, errNotFound)
	})

	root.Get("/health", h.health)
	if opts.Metrics != nil {
		root.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	root.Group(func(r chi.Router) {
		r.Use(middleware.Gate(
			middleware.RateLimit(engine, policies.General, middleware.KeyByIPAndUser),
			middleware.IPBlock(engine),
			middleware.Sanitize(cfg.Security.MaxBodyBytes),
			middleware.Screen(cfg.Security.ScreenSQL, cfg.Security.ScreenNoSQL),
		))

		authn := middleware.Authenticate(engine)
		csrf := middleware.CSRF(engine)

		r.Route("/auth", func(r chi.Router) {
			login := middleware.Gate(middleware.RateLimit(engine, policies.Login, loginKey))
			r.With(login).Get("/google", h.googleLogin)
			r.With(login).Get("/login-callback", h.googleLogin)
			r.With(login).Get("/googleauth", h.googleLogin)

			r.With(middleware.Gate(
				middleware.RateLimit(engine, policies.Refresh, middleware.KeyByIP("refresh")),
				middleware.RequireRefresh(engine, false),
			)).Post("/refresh", h.refresh)
			r.With(middleware.Gate(middleware.RequireRefresh(engine, true))).Post("/logout", h.logout)
			r.With(middleware.Gate(authn, csrf)).Post("/logout-all", h.logoutAll)
			r.With(middleware.Gate(authn)).Get("/session", h.session)
			r.With(middleware.Gate(authn)).Get("/sessions", h.sessions)
			r.Get("/csrf", h.csrf)
		})

		r.Route("/profile", func(r chi.Router) {
			r.Use(middleware.Gate(authn, csrf))
			r.Get("/", h.getProfile)
			r.Put("/", h.updateProfile)
		})

		if h.conns != nil {
			r.Route("/connections", func(r chi.Router) {
				r.Use(middleware.Gate(authn, csrf))
				r.Get("/", h.listConnections)
				r.Post("/", h.createConnection)
				r.Put("/{id}", h.updateConnection)
				r.Delete("/{id}", h.deleteConnection)
			})
		}
	})

	return root, nil
}
