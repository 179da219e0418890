package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"csbridge/internal/attachments"
	apperrors "csbridge/internal/errors"
	"csbridge/internal/metrics"
	"csbridge/internal/middleware"
	"csbridge/internal/models"
	"csbridge/internal/service"
	"csbridge/internal/timestamps"
	"csbridge/internal/tracing"
	"csbridge/pkg/whatsapp/types"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const (
	maxJSONBody         = 1 << 20
	maxWebhookBody      = 10 << 20
	limiterCleanupEvery = time.Minute
	limiterMaxIdle      = 10 * time.Minute
)

// SupportAPI is the operator surface the dashboard serves.
type SupportAPI interface {
	ListInbound(ctx context.Context) ([]models.Message, error)
	Conversation(ctx context.Context, id int64) (*service.ConversationView, error)
	Reply(ctx context.Context, id int64, req service.ReplyRequest) (*service.ReplyResult, error)
	ReplyAttachment(ctx context.Context, id int64, filePath, mimeType string) (*service.ReplyResult, error)
	UpdateStatus(ctx context.Context, id int64, status models.Status) error
	Delete(ctx context.Context, id int64) error
	Upload(name string, r io.Reader) (*attachments.Upload, error)
	Exclusions(ctx context.Context) ([]string, error)
	AddExclusion(ctx context.Context, id string) (bool, error)
	RemoveExclusion(ctx context.Context, id string) error
	SessionStatus(ctx context.Context) (*types.Session, error)
	PairingQR(ctx context.Context) ([]byte, string, error)
}

// WebhookHandler consumes transport events pushed to /webhook/whatsapp.
type WebhookHandler interface {
	HandleEvent(ctx context.Context, event *types.WebhookEvent) error
}

// HealthChecker reports whether the store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Server struct {
	router     *mux.Router
	logger     *logrus.Logger
	cfg        *models.Config
	support    SupportAPI
	webhook    WebhookHandler
	health     HealthChecker
	validate   *validator.Validate
	limiter    *RateLimiter
	zone       timestamps.Zone
	uploadsDir string
	verbose    bool
	server     *http.Server
	stop       chan struct{}
}

func NewServer(cfg *models.Config, support SupportAPI, webhook WebhookHandler, health HealthChecker, zone timestamps.Zone, verbose bool, logger *logrus.Logger) *Server {
	s := &Server{
		router:     mux.NewRouter(),
		logger:     logger,
		cfg:        cfg,
		support:    support,
		webhook:    webhook,
		health:     health,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		limiter:    NewRateLimiter(cfg.Server.RateLimitPerSecond, cfg.Server.RateLimitBurst),
		zone:       zone,
		uploadsDir: cfg.Uploads.Dir,
		verbose:    verbose,
		stop:       make(chan struct{}),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(
		middleware.ObservabilityMiddleware(s.logger, s.cfg.Server.TrustProxy),
		middleware.RecoveryMiddleware(s.logger),
	)
	if s.verbose {
		s.router.Use(middleware.DetailedLoggingMiddleware(s.logger, middleware.DefaultDetailedLoggingConfig()))
	}

	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	s.router.HandleFunc("/webhook/whatsapp", s.handleWhatsAppWebhook()).Methods(http.MethodPost)

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.rateLimit, s.basicAuth)
	api.HandleFunc("/messages", s.handleListMessages()).Methods(http.MethodGet)
	api.HandleFunc("/messages/{id:[0-9]+}", s.handleGetMessage()).Methods(http.MethodGet)
	api.HandleFunc("/messages/{id:[0-9]+}", s.handleDeleteMessage()).Methods(http.MethodDelete)
	api.HandleFunc("/messages/{id:[0-9]+}/reply", s.handleReply()).Methods(http.MethodPost)
	api.HandleFunc("/messages/{id:[0-9]+}/reply-attachment", s.handleReplyAttachment()).Methods(http.MethodPost)
	api.HandleFunc("/messages/{id:[0-9]+}/status", s.handleUpdateStatus()).Methods(http.MethodPost)
	api.HandleFunc("/upload", s.handleUpload()).Methods(http.MethodPost)
	api.HandleFunc("/exclusions", s.handleListExclusions()).Methods(http.MethodGet)
	api.HandleFunc("/exclusions", s.handleAddExclusion()).Methods(http.MethodPost)
	api.HandleFunc("/exclusions/{id}", s.handleRemoveExclusion()).Methods(http.MethodDelete)
	api.HandleFunc("/session", s.handleSessionStatus()).Methods(http.MethodGet)
	api.HandleFunc("/session/qr", s.handleSessionQR()).Methods(http.MethodGet)

	uploads := s.router.PathPrefix("/uploads/").Subrouter()
	uploads.Use(s.rateLimit, s.basicAuth)
	uploads.PathPrefix("/").Handler(http.StripPrefix("/uploads/", noDirListing(http.FileServer(http.Dir(s.uploadsDir))))).
		Methods(http.MethodGet, http.MethodHead)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.Server.IdleTimeoutSec) * time.Second,
	}
	go s.limiter.Run(limiterCleanupEvery, limiterMaxIdle, s.stop)

	s.logger.Infof("Starting server on port %d", s.cfg.Server.Port)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	close(s.stop)
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			s.logger.WithError(err).Warn("Health check failed")
			s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

// writeError renders err as the standard JSON error body. Server-side faults
// are logged; client errors only at debug level.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := tracing.GetRequestID(r.Context())
	status := apperrors.HTTPStatusCode(err)
	fields := logrus.Fields{"request_id": requestID, "status_code": status}
	if status >= http.StatusInternalServerError {
		apperrors.LogRetryableError(s.logger, err, "Request failed", fields)
	} else {
		s.logger.WithError(err).WithFields(fields).Debug("Request rejected")
	}
	s.writeJSON(w, status, apperrors.ToHTTPResponse(err, requestID))
}

// decodeJSON reads a bounded JSON body into dst and validates it.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperrors.NewValidationError("body", "malformed JSON")
	}
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return apperrors.NewValidationError(strings.ToLower(fe.Field()), fmt.Sprintf("failed %q validation", fe.Tag()))
		}
		return apperrors.NewValidationError("body", err.Error())
	}
	return nil
}

// noDirListing answers 404 for directory paths instead of listing them.
func noDirListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
