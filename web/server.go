// Package web serves the academia pages over fiber. Every page request gets
// its own auth client and session store, restored from the session cookie,
// and protected routes are guarded by the route gate.
package web

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/goliatone/academia"
	"github.com/goliatone/academia/blob"
	"github.com/goliatone/academia/config"
	"github.com/goliatone/academia/docstore"
	"github.com/goliatone/academia/social"
	"github.com/goliatone/go-router"
)

// Routes lists the paths the handlers redirect to.
type Routes struct {
	Home      string
	SignIn    string
	Login     string
	Register  string
	Logout    string
	Warning   string
	AdminHome string
}

// DefaultRoutes derives the routes from cfg.
func DefaultRoutes(cfg *config.Config) Routes {
	signIn := cfg.Auth.SignInPath
	if signIn == "" {
		signIn = academia.DefaultSignInPath
	}
	return Routes{
		Home:      "/",
		SignIn:    signIn,
		Login:     signIn + "/login",
		Register:  signIn + "/register",
		Logout:    "/logout",
		Warning:   signIn + "/warning",
		AdminHome: "/admin/usuarios",
	}
}

// Server wires the handlers to the document store, the auth backend and
// blob storage.
type Server struct {
	cfg      *config.Config
	srv      router.Server[*fiber.App]
	app      *fiber.App
	docs     *docstore.Store
	backend  academia.AuthBackend
	social   *social.Authenticator
	blobs    blob.Store
	sink     academia.ActivitySink
	metrics  *Metrics
	csrf     *csrfGuard
	routes   Routes
	provider academia.LoggerProvider
	logger   academia.Logger
	now      func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithLoggerProvider sets the provider used to name component loggers.
func WithLoggerProvider(p academia.LoggerProvider) Option {
	return func(s *Server) {
		if p != nil {
			s.provider = p
		}
	}
}

// WithSocialAuthenticator enables federated sign in.
func WithSocialAuthenticator(a *social.Authenticator) Option {
	return func(s *Server) {
		s.social = a
	}
}

// WithActivitySink records operator actions such as role changes.
func WithActivitySink(sink academia.ActivitySink) Option {
	return func(s *Server) {
		s.sink = academia.NormalizeActivitySink(sink)
	}
}

// WithMetrics replaces the default collectors.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// New builds the fiber app and registers every route.
func New(cfg *config.Config, docs *docstore.Store, backend academia.AuthBackend, blobs blob.Store, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		docs:    docs,
		backend: backend,
		blobs:   blobs,
		sink:    academia.NormalizeActivitySink(nil),
		routes:  DefaultRoutes(cfg),
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.provider, s.logger = academia.ResolveLogger("academia.web", s.provider, nil)
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	s.csrf = newCSRFGuard(cfg.Auth.SigningKey, time.Duration(cfg.Auth.TokenExpiration)*time.Hour)
	s.csrf.now = s.now

	s.srv = router.NewFiberAdapter(func(*fiber.App) *fiber.App {
		return fiber.New(fiber.Config{
			AppName:               "academia",
			Views:                 newViewEngine(),
			ErrorHandler:          s.handleError,
			DisableStartupMessage: true,
			BodyLimit:             int(maxUploadSize(cfg)) + 1<<20,
		})
	})
	s.srv.Router().WithLogger(s.provider.GetLogger("academia.router"))
	s.app = s.srv.WrappedRouter()
	s.registerRoutes()
	return s
}

// App exposes the fiber app, mostly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Metrics returns the collectors the server records into.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Listen serves until ctx is done, then shuts down within the configured
// timeout.
func (s *Server) Listen(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Server.Addr)
		errCh <- s.srv.Serve(s.cfg.Server.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout())
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}

func (s *Server) registerRoutes() {
	app := s.app
	r := s.srv.Router()
	app.Use(recover.New())
	app.Use(s.metrics.Middleware())

	if s.cfg.Server.Metrics {
		app.Get("/metrics", s.metrics.Handler())
	}
	app.Static(s.cfg.Storage.PublicPrefix, s.cfg.Storage.Dir)
	r.Get("/healthz", s.health).SetName("health")

	app.Use(s.sessionMiddleware(), s.csrf.middleware())

	signedIn := s.protect("authenticated", academia.AuthenticatedGuard{SignInPath: s.routes.SignIn})
	admin := s.protect("admin", academia.RoleGuard{Required: academia.RoleAdmin, SignInPath: s.routes.SignIn})

	app.Get(s.routes.Home, s.home)
	app.Get("/cursos/:id", s.courseShow)
	app.Get("/mentores/:mentorId", s.mentorShow)
	app.Get("/mentores/:mentorId/book", signedIn, s.bookingForm)
	app.Post("/mentores/:mentorId/book", signedIn, s.bookingCreate)

	app.Get(s.routes.SignIn, s.authShow)
	app.Post(s.routes.Login, s.loginPost)
	app.Post(s.routes.Register, s.registerPost)
	app.Get(s.routes.Warning, s.warningShow)
	app.Get(s.routes.SignIn+"/:provider", s.federatedBegin)
	app.Get(s.routes.SignIn+"/:provider/callback", s.federatedCallback)
	r.Post(s.routes.Logout, s.logout).SetName("auth.logout")

	adm := app.Group("/admin", admin)
	adm.Get("/usuarios", s.adminUsers)
	adm.Post("/usuarios/:uid/role", s.adminUserRole)
	adm.Post("/usuarios/:uid/delete", s.adminUserDelete)

	adm.Get("/mentores", s.adminMentors)
	adm.Get("/mentores/new", s.adminMentorForm)
	adm.Post("/mentores", s.adminMentorSave)
	adm.Get("/mentores/:id", s.adminMentorForm)
	adm.Post("/mentores/:id", s.adminMentorSave)
	adm.Post("/mentores/:id/delete", s.adminMentorDelete)

	adm.Get("/cursos", s.adminCourses)
	adm.Get("/cursos/new", s.adminCourseForm)
	adm.Post("/cursos", s.adminCourseSave)
	adm.Get("/cursos/:id", s.adminCourseForm)
	adm.Post("/cursos/:id", s.adminCourseSave)
	adm.Post("/cursos/:id/delete", s.adminCourseDelete)

	adm.Get("/bookings", s.adminBookings)
	adm.Get("/bookings.csv", s.adminBookingsCSV)
	adm.Post("/bookings/:id/status", s.adminBookingStatus)
	adm.Post("/bookings/:id/delete", s.adminBookingDelete)
}

func maxUploadSize(cfg *config.Config) int64 {
	if cfg.Storage.MaxSize > 0 {
		return cfg.Storage.MaxSize
	}
	return blob.DefaultMaxSize
}
