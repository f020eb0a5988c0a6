package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lifenippon/apiserver/config"
	"github.com/lifenippon/apiserver/internal/db"
	"github.com/lifenippon/apiserver/internal/handlers"
	"github.com/lifenippon/apiserver/internal/mailer"
	"github.com/lifenippon/apiserver/internal/metrics"
	"github.com/lifenippon/apiserver/internal/mq"
	"github.com/lifenippon/apiserver/internal/services"
	"github.com/lifenippon/apiserver/internal/storage"
	"github.com/lifenippon/apiserver/internal/store"
	"golang.org/x/time/rate"
)

// Server wraps the HTTP server and its resource handles.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	queue      mq.Backend
	limiter    *handlers.RateLimiter
	logger     *slog.Logger
}

// New wires the full application: database, repositories, services,
// mail dispatch, photo storage, and the route tree.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Auth.SessionSecret == "" || cfg.Auth.ActivationSecret == "" || cfg.Auth.ResetSecret == "" {
		return nil, errors.New("JWT_SECRET, JWT_ACCOUNT_ACTIVATION and JWT_RESET_PASSWORD are required")
	}

	dbConn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	blogRepo := store.NewBlogRepository(dbConn)
	categoryRepo := store.NewCategoryRepository(dbConn)
	tagRepo := store.NewTagRepository(dbConn)

	photoBackend, err := storage.NewBackend(ctx, cfg)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("photo storage: %w", err)
	}
	photos := storage.NewPhotoStore(photoBackend)
	if err := photos.EnsureBucket(ctx); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("photo storage: %w", err)
	}

	var queue mq.Backend
	sender := mailer.Sender(mailer.NewSMTPSender(cfg.SMTP, cfg.Mail.From))
	if cfg.Mail.Dispatch == "queue" {
		queue, err = mq.NewBackend(ctx, cfg)
		if err != nil {
			_ = dbConn.Close()
			return nil, fmt.Errorf("mail queue: %w", err)
		}
		sender = mailer.NewQueueSender(queue, cfg.Queue.MailQueue)
	}

	collector := metrics.NewCollector()

	auth := services.NewAuthService(services.AuthParams{
		Users:      userRepo,
		Mail:       sender,
		Identity:   services.NewGoogleVerifier(cfg.Google.ClientID),
		Activation: services.NewTokenService(cfg.Auth.ActivationSecret, services.ActivationTokenTTL),
		Reset:      services.NewTokenService(cfg.Auth.ResetSecret, services.ResetTokenTTL),
		Session:    services.NewTokenService(cfg.Auth.SessionSecret, services.SessionTokenTTL),
		ClientURL:  cfg.ClientURL,
		Metrics:    collector,
		Logger:     logger,
	})
	userService := services.NewUserService(userRepo, photos)
	blogService := services.NewBlogService(blogRepo, userRepo, categoryRepo, tagRepo, photos, cfg.AppName)
	taxonomyService := services.NewTaxonomyService(categoryRepo, tagRepo, blogRepo)

	requireSignin := handlers.RequireSignin(auth)
	requireAdmin := handlers.RequireAdmin(userService)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
		collector.Middleware,
	)
	router.Get("/healthz", handlers.Healthz)
	router.Method(http.MethodGet, "/metrics", collector.Handler())

	limiter := handlers.NewRateLimiter(rate.Every(time.Second), 10)

	router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Use(limiter.Middleware())
			handlers.AuthRouter(r, auth)
		})
		r.Route("/user", func(r chi.Router) {
			handlers.UserRouter(r, userService, blogService, requireSignin)
		})
		r.Route("/blogs", func(r chi.Router) {
			handlers.BlogRouter(r, blogService, userService, taxonomyService, requireSignin)
		})
		r.Route("/categories", func(r chi.Router) {
			handlers.CategoryRouter(r, taxonomyService, adminChain(requireSignin, requireAdmin))
		})
		r.Route("/tags", func(r chi.Router) {
			handlers.TagRouter(r, taxonomyService, adminChain(requireSignin, requireAdmin))
		})
		handlers.FormRouter(r, sender, userService, cfg.Mail.ContactTo)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		queue:      queue,
		limiter:    limiter,
		logger:     logger,
	}, nil
}

// adminChain composes signin and admin checks into one middleware.
func adminChain(requireSignin, requireAdmin func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return requireSignin(requireAdmin(next))
	}
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.queue != nil {
		_ = s.queue.Close()
	}
	return s.httpServer.Shutdown(ctx)
}
