package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/picourse/apiserver/config"
	"github.com/picourse/apiserver/internal/db"
	"github.com/picourse/apiserver/internal/handlers"
	"github.com/picourse/apiserver/internal/mq"
	"github.com/picourse/apiserver/internal/notify"
	"github.com/picourse/apiserver/internal/services"
	"github.com/picourse/apiserver/internal/storage"
	"github.com/picourse/apiserver/internal/store"
	"go.uber.org/zap"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	mq         *mq.MQ
	logger     *zap.Logger
}

// New constructs a Server with basic middleware and defaults.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	jwtSecret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if jwtSecret == "" {
		_ = dbConn.Close()
		return nil, errors.New("JWT_SECRET is required")
	}

	broker, err := mq.NewFromConfig(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	objectStore, err := storage.NewFromConfig(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	if objectStore != nil {
		if err := objectStore.EnsureBucket(ctx); err != nil {
			_ = dbConn.Close()
			return nil, err
		}
	}

	userRepo := store.NewUserRepository(dbConn)
	profileRepo := store.NewProfileRepository(dbConn)
	subjectRepo := store.NewSubjectRepository(dbConn)
	tutorRepo := store.NewTutorRepository(dbConn)
	requestRepo := store.NewLessonRequestRepository(dbConn)

	var events services.EventPublisher
	if broker != nil {
		events = notify.NewPublisher(broker, logger)
	}

	userService := services.NewUserService(userRepo, profileRepo, subjectRepo)
	subjectService := services.NewSubjectService(subjectRepo)
	tutorService := services.NewTutorService(tutorRepo)
	requestService := services.NewLessonRequestService(requestRepo, userRepo, subjectRepo, profileRepo, events)

	authMiddleware := handlers.RequireAuth(jwtSecret)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, userService, jwtSecret)
	})
	router.Route("/me", func(r chi.Router) {
		handlers.MeRouter(r, userService, objectStore, authMiddleware)
	})
	router.Route("/subjects", func(r chi.Router) {
		handlers.SubjectRouter(r, subjectService)
	})
	router.Route("/tutors", func(r chi.Router) {
		handlers.TutorRouter(r, tutorService, userService, objectStore)
	})
	router.With(middleware.Throttle(cfg.LessonRequestThrottle)).Route("/lesson-requests", func(r chi.Router) {
		handlers.LessonRequestRouter(r, requestService, userService, authMiddleware)
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
		mq:         broker,
		logger:     logger,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("server listening", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.mq != nil {
		_ = s.mq.Close()
	}
	_ = s.logger.Sync()
	return s.httpServer.Close()
}
