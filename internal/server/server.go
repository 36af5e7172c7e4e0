package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/contactsbook/apiserver/config"
	"github.com/contactsbook/apiserver/internal/auth"
	"github.com/contactsbook/apiserver/internal/avatar"
	"github.com/contactsbook/apiserver/internal/cache"
	"github.com/contactsbook/apiserver/internal/db"
	"github.com/contactsbook/apiserver/internal/handlers"
	"github.com/contactsbook/apiserver/internal/mailer"
	"github.com/contactsbook/apiserver/internal/metrics"
	"github.com/contactsbook/apiserver/internal/mq"
	"github.com/contactsbook/apiserver/internal/ratelimit"
	"github.com/contactsbook/apiserver/internal/services"
	"github.com/contactsbook/apiserver/internal/storage"
	"github.com/contactsbook/apiserver/internal/store"
)

const shutdownTimeout = 30 * time.Second

// Server wraps the HTTP server and the process-wide clients
// it owns.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger

	db         *sql.DB
	identities *cache.IdentityCache
	broker     mq.Backend
	objects    storage.ObjectStorage
	sessions   *services.SessionService

	workerCancel context.CancelFunc
	workerDone   sync.WaitGroup
}

// New connects every backing service and builds the router. Clients opened
// before a failure are closed again.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (srv *Server, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{logger: logger}
	defer func() {
		if err != nil {
			s.closeClients()
		}
	}()

	s.db, err = db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	m := metrics.New()

	redisClient := cache.NewRedisClient(cfg.Redis)
	redisStore := cache.NewRedisStore(redisClient)
	if pingErr := redisStore.Ping(ctx); pingErr != nil {
		logger.WarnContext(ctx, "redis unavailable at startup, identity cache will miss", "error", pingErr)
	}
	s.identities = cache.NewIdentityCache(
		redisStore,
		cache.WithTTL(cfg.Redis.IdentityTTL),
		cache.WithTimeout(cfg.Redis.OpTimeout),
		cache.WithLogger(logger),
		cache.WithMetrics(m),
	)

	codec, err := auth.NewCodec(
		cfg.JWT.Secret,
		cfg.JWT.Algorithm,
		auth.WithAccessTTL(cfg.JWT.AccessTTL),
		auth.WithRefreshTTL(cfg.JWT.RefreshTTL),
	)
	if err != nil {
		return nil, err
	}
	hasher := auth.NewHasher(cfg.Password.BcryptCost)

	s.objects, err = storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	if bucketErr := s.objects.EnsureBucket(ctx); bucketErr != nil {
		logger.WarnContext(ctx, "avatar bucket check failed", "bucket", s.objects.Bucket(), "error", bucketErr)
	}

	s.broker, err = mq.New(ctx, cfg.MQ)
	if err != nil {
		return nil, fmt.Errorf("init mq: %w", err)
	}
	if isMemoryBackend(cfg.MQ.Backend) {
		sender, senderErr := mailer.NewSMTPSender(cfg.SMTP)
		if senderErr != nil {
			return nil, fmt.Errorf("init smtp: %w", senderErr)
		}
		s.startInlineWorker(mailer.NewWorker(s.broker, cfg.MQ.Channel, codec, sender, logger))
	}

	userRepo := store.NewUserRepository(s.db)
	contactRepo := store.NewContactRepository(s.db)

	s.sessions = services.NewSessionService(
		userRepo,
		codec,
		hasher,
		s.identities,
		mailer.NewQueuePublisher(s.broker, cfg.MQ.Channel),
		services.WithAvatarResolver(avatar.NewGravatar()),
		services.WithSessionLogger(logger),
		services.WithSessionMetrics(m),
	)
	userService := services.NewUserService(userRepo, s.objects, s.identities, logger)
	contactService := services.NewContactService(contactRepo, logger)

	authMiddleware := handlers.RequireUser(s.sessions, logger)
	var listLimiter func(http.Handler) http.Handler
	if cfg.RateLimit.Enabled {
		limiter := ratelimit.New(redisClient, cfg.RateLimit.Limit, cfg.RateLimit.Window, logger, m)
		listLimiter = limiter.Middleware("contacts", handlers.UserKey)
	}

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Method(http.MethodGet, "/metrics", m.Handler())
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, handlers.NewAuthHandler(s.sessions, cfg.BaseURL, logger))
	})
	router.Route("/users", func(r chi.Router) {
		handlers.UserRouter(r, handlers.NewUserHandler(userService, logger), authMiddleware)
	})
	router.Route("/main", func(r chi.Router) {
		handlers.ContactRouter(r, handlers.NewContactHandler(contactService, logger), authMiddleware, listLimiter)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, waits for queued confirmation
// dispatches, then releases every client.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	if s.sessions != nil {
		s.sessions.Close()
	}
	s.closeClients()
	return err
}

func (s *Server) startInlineWorker(w *mailer.Worker) {
	ctx, cancel := context.WithCancel(context.Background())
	s.workerCancel = cancel
	s.workerDone.Add(1)
	go func() {
		defer s.workerDone.Done()
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("inline mail worker stopped", "error", err)
		}
	}()
}

func (s *Server) closeClients() {
	if s.workerCancel != nil {
		s.workerCancel()
		s.workerDone.Wait()
	}
	if s.broker != nil {
		if err := s.broker.Close(); err != nil {
			s.logger.Warn("close mq", "error", err)
		}
	}
	if s.identities != nil {
		if err := s.identities.Close(); err != nil {
			s.logger.Warn("close redis", "error", err)
		}
	}
	if s.objects != nil {
		if err := s.objects.Close(); err != nil {
			s.logger.Warn("close storage", "error", err)
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Warn("close database", "error", err)
		}
	}
}

func isMemoryBackend(backend string) bool {
	return strings.EqualFold(strings.TrimSpace(backend), "memory")
}
