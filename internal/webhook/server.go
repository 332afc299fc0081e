package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mattjoyce/octox/internal/delivery"
	"github.com/mattjoyce/octox/internal/event"
	"github.com/mattjoyce/octox/internal/log"
	"github.com/mattjoyce/octox/internal/workflow"
)

// Server represents the webhook HTTP server.
type Server struct {
	config   Config
	executor Executor
	health   HealthChecker
	recorder Recorder
	logger   *slog.Logger
	server   *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithRecorder stores every delivery outcome in r.
func WithRecorder(r Recorder) Option {
	return func(s *Server) { s.recorder = r }
}

// New creates a new webhook server instance.
func New(config Config, executor Executor, health HealthChecker, logger *slog.Logger, opts ...Option) *Server {
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = DefaultMaxBodySize
	}
	if logger == nil {
		logger = log.WithComponent("webhook")
	}
	s := &Server{
		config:   config,
		executor: executor,
		health:   health,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// Start binds config.Listen and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on an already bound listener until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.server = &http.Server{
		Handler:      s.setupRoutes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("webhook server starting", "listen", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("webhook server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("webhook server error: %w", err)
	}
}

// setupRoutes configures the HTTP router.
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Post("/", s.handleWebhook)

	return r
}

// loggingMiddleware logs HTTP requests (excludes sensitive payloads).
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("webhook request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
			"remote_addr", r.RemoteAddr,
		)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "Hello, World!")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.health.CheckApp(r.Context()); err != nil {
		s.logger.Error("github health check failed",
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		s.respondJSON(w, http.StatusInternalServerError, HealthResponse{GitHub: err.Error()})
		return
	}
	s.respondJSON(w, http.StatusOK, HealthResponse{GitHub: "ok"})
}

// handleWebhook authenticates, decodes and executes one delivery.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	logger := log.WithDelivery(s.logger, r.Header.Get(DeliveryHeader)).
		With("request_id", middleware.GetReqID(ctx))

	rec := delivery.Record{
		DeliveryID: r.Header.Get(DeliveryHeader),
		Event:      r.Header.Get(EventHeader),
		CreatedAt:  start,
	}
	if rec.Event == "" {
		rec.Event = "unknown"
	}
	defer func() {
		rec.Duration = time.Since(start)
		s.record(ctx, logger, rec)
	}()

	// Enforce body size limit
	body, err := io.ReadAll(io.LimitReader(r.Body, s.config.MaxBodySize+1))
	if err != nil {
		rec.Status, rec.HTTPStatus, rec.Error = delivery.StatusFailed, http.StatusInternalServerError, err.Error()
		s.respondError(w, http.StatusInternalServerError, "failed to read request body")
		return
	}
	rec.PayloadDigest = delivery.Digest(body)
	if int64(len(body)) > s.config.MaxBodySize {
		rec.Status, rec.HTTPStatus, rec.Error = delivery.StatusRejected, http.StatusRequestEntityTooLarge, "payload too large"
		s.respondError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	ev, err := s.authenticate(r, body)
	if err != nil {
		status := authStatus(err)
		logger.Warn("webhook rejected", "status", status, "error", err)
		rec.Status, rec.HTTPStatus, rec.Error = delivery.StatusRejected, status, err.Error()
		s.respondError(w, status, err.Error())
		return
	}

	logger.Debug("webhook accepted",
		"event", ev.String(),
		"repository", ev.Repository,
		"sender", ev.Get("sender.login").String(),
	)

	result, err := s.executor.Execute(ctx, ev)
	if err != nil {
		status := s.respondWorkflowError(w, err)
		rec.HTTPStatus, rec.Error = status, err.Error()
		switch {
		case status == http.StatusOK:
			rec.Status = delivery.StatusAcknowledged
			logger.Info("workflow declined event", "event", ev.String(), "reason", err)
		case status < http.StatusInternalServerError:
			rec.Status = delivery.StatusRejected
			logger.Warn("workflow rejected event", "event", ev.String(), "error", err)
		default:
			rec.Status = delivery.StatusFailed
			logger.Error("workflow failed", "event", ev.String(), "error", err)
		}
		return
	}

	rec.Status, rec.HTTPStatus = delivery.StatusSucceeded, http.StatusOK
	s.respondJSON(w, http.StatusOK, result)
}

// authenticate verifies the signature before the body is decoded.
func (s *Server) authenticate(r *http.Request, body []byte) (event.Event, error) {
	signature := r.Header.Get(SignatureHeader)
	if signature == "" {
		return event.Event{}, &MissingHeaderError{Header: SignatureHeader}
	}
	if err := VerifySignature(body, signature, s.config.Secret); err != nil {
		return event.Event{}, err
	}

	eventType := r.Header.Get(EventHeader)
	if eventType == "" {
		return event.Event{}, &MissingHeaderError{Header: EventHeader}
	}
	ev, err := event.Decode(eventType, body)
	if err != nil {
		return event.Event{}, fmt.Errorf("%w: %w", ErrUnexpectedPayload, err)
	}
	return ev, nil
}

// respondWorkflowError renders err according to its workflow kind and
// returns the status written.
func (s *Server) respondWorkflowError(w http.ResponseWriter, err error) int {
	switch workflow.KindOf(err) {
	case workflow.KindConfiguration:
		s.respondJSON(w, http.StatusOK, AckResponse{Message: err.Error()})
		return http.StatusOK
	case workflow.KindMissingData:
		s.respondError(w, http.StatusBadRequest, err.Error())
		return http.StatusBadRequest
	default:
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return http.StatusInternalServerError
	}
}

func (s *Server) record(ctx context.Context, logger *slog.Logger, rec delivery.Record) {
	if s.recorder == nil {
		return
	}
	// The request context may already be cancelled once the client is gone.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if _, err := s.recorder.Record(ctx, rec); err != nil {
		logger.Error("failed to record delivery", "error", err)
	}
}

// respondJSON sends a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("failed to encode response", "error", err)
		status = http.StatusInternalServerError
		payload, _ = json.Marshal(ErrorResponse{Error: "failed to encode workflow result"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

// respondError sends a JSON error response.
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, ErrorResponse{Error: message})
}
