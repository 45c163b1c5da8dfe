// Package http provides the spiralmind HTTP API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/spiralmind/internal/concept"
	"github.com/fyrsmithlabs/spiralmind/internal/knowledge"
	"github.com/fyrsmithlabs/spiralmind/internal/logging"
	"github.com/fyrsmithlabs/spiralmind/internal/router"
)

// ConceptStore is the part of the knowledge store the API exposes.
type ConceptStore interface {
	Learn(ctx context.Context, concept, explanation string) error
	Recall(ctx context.Context, concept string) (string, error)
	Explanations(concept string) ([]string, error)
	FindRelated(concept string) []concept.Concept
	Concepts() []concept.Concept
	Len() int
}

// Chatter routes chat utterances.
type Chatter interface {
	Submit(ctx context.Context, sessionID, utterance string) router.Response
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// Options wires a Server.
type Options struct {
	Router Chatter
	Store  ConceptStore
	Logger *logging.Logger

	// Gatherer backs GET /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer

	// Meter records request metrics. Nil uses the global meter provider.
	Meter metric.Meter
}

// Server provides HTTP endpoints for spiralmind.
type Server struct {
	echo   *echo.Echo
	router Chatter
	store  ConceptStore
	logger *logging.Logger
	config *Config
}

// NewServer creates a new HTTP server.
func NewServer(opts Options, cfg *Config) (*Server, error) {
	if opts.Router == nil {
		return nil, fmt.Errorf("router cannot be nil")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if opts.Logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "127.0.0.1",
			Port: 9191,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(NewHTTPMetrics(opts.Meter, opts.Logger.Underlying()).MetricsMiddleware())
	e.Use(requestLogger(opts.Logger))

	s := &Server{
		echo:   e,
		router: opts.Router,
		store:  opts.Store,
		logger: opts.Logger,
		config: cfg,
	}
	s.registerRoutes(opts.Gatherer)

	return s, nil
}

// requestLogger stores the request id in the request context and logs each
// request after it completes. Handler errors are written here so outer
// middleware sees the final status.
func requestLogger(logger *logging.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			requestID := c.Response().Header().Get(echo.HeaderXRequestID)
			ctx := logging.WithRequestID(req.Context(), requestID)
			c.SetRequest(req.WithContext(ctx))

			err := next(c)
			if err != nil {
				// Let echo write the response so the status is known.
				c.Error(err)
			}

			logger.Info(ctx, "http request",
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)
			return nil
		}
	}
}

func (s *Server) registerRoutes(gatherer prometheus.Gatherer) {
	s.echo.GET("/health", s.handleHealth)
	if gatherer != nil {
		s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	v1 := s.echo.Group("/api/v1")
	v1.POST("/chat", s.handleChat)
	v1.GET("/concepts", s.handleListConcepts)
	v1.POST("/concepts", s.handleLearn)
	v1.GET("/concepts/:concept", s.handleRecall)
	v1.GET("/concepts/:concept/related", s.handleRelated)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Concepts int    `json:"concepts"`
}

// ChatRequest is the request body for POST /api/v1/chat.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// LearnRequest is the request body for POST /api/v1/concepts.
type LearnRequest struct {
	Concept     string `json:"concept"`
	Explanation string `json:"explanation"`
}

// LearnResponse is the response body for POST /api/v1/concepts.
type LearnResponse struct {
	Concept   string `json:"concept"`
	Persisted bool   `json:"persisted"`
}

// ConceptsResponse is the response body for GET /api/v1/concepts.
type ConceptsResponse struct {
	Concepts []string `json:"concepts"`
	Count    int      `json:"count"`
}

// RecallResponse is the response body for GET /api/v1/concepts/:concept.
type RecallResponse struct {
	Concept      string   `json:"concept"`
	Answer       string   `json:"answer"`
	Explanations []string `json:"explanations"`
}

// RelatedResponse is the response body for GET /api/v1/concepts/:concept/related.
type RelatedResponse struct {
	Concept string   `json:"concept"`
	Related []string `json:"related"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Concepts: s.store.Len()})
}

// handleChat submits one utterance. Invalid utterances still get a 200 with
// the router's reply; only an unreadable body is a client error.
func (s *Server) handleChat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn(c.Request().Context(), "invalid chat request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	resp := s.router.Submit(c.Request().Context(), req.SessionID, req.Message)
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListConcepts(c echo.Context) error {
	concepts := s.store.Concepts()
	return c.JSON(http.StatusOK, ConceptsResponse{
		Concepts: conceptStrings(concepts),
		Count:    len(concepts),
	})
}

// handleLearn teaches an explanation directly. A persistence failure still
// returns 201 because the in-memory store accepted the explanation.
func (s *Server) handleLearn(c echo.Context) error {
	ctx := c.Request().Context()

	var req LearnRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn(ctx, "invalid learn request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	err := s.store.Learn(ctx, req.Concept, req.Explanation)
	switch {
	case err == nil:
	case errors.Is(err, knowledge.ErrPersistence):
		s.logger.Warn(ctx, "learned concept not persisted", zap.Error(err))
	case errors.Is(err, knowledge.ErrEmptyConcept), errors.Is(err, knowledge.ErrEmptyExplanation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to learn concept")
	}

	return c.JSON(http.StatusCreated, LearnResponse{
		Concept:   concept.Normalize(req.Concept).String(),
		Persisted: err == nil,
	})
}

func (s *Server) handleRecall(c echo.Context) error {
	ctx := c.Request().Context()
	name, err := conceptParam(c)
	if err != nil {
		return err
	}

	answer, err := s.store.Recall(ctx, name.String())
	if err != nil {
		return recallError(err)
	}
	explanations, err := s.store.Explanations(name.String())
	if err != nil {
		return recallError(err)
	}

	return c.JSON(http.StatusOK, RecallResponse{
		Concept:      name.String(),
		Answer:       answer,
		Explanations: explanations,
	})
}

func (s *Server) handleRelated(c echo.Context) error {
	name, err := conceptParam(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, RelatedResponse{
		Concept: name.String(),
		Related: conceptStrings(s.store.FindRelated(name.String())),
	})
}

// conceptParam reads and normalizes the :concept path segment.
func conceptParam(c echo.Context) (concept.Concept, error) {
	raw := c.Param("concept")
	// echo matches on RawPath when it is set, leaving params escaped.
	if c.Request().URL.RawPath != "" {
		if unescaped, err := url.PathUnescape(raw); err == nil {
			raw = unescaped
		}
	}
	name := concept.Normalize(raw)
	if name.IsZero() {
		return "", echo.NewHTTPError(http.StatusBadRequest, "concept is required")
	}
	return name, nil
}

func recallError(err error) error {
	switch {
	case errors.Is(err, knowledge.ErrConceptNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "concept not found")
	case errors.Is(err, knowledge.ErrEmptyConcept):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to recall concept")
	}
}

func conceptStrings(concepts []concept.Concept) []string {
	out := make([]string, len(concepts))
	for i, c := range concepts {
		out[i] = c.String()
	}
	return out
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server. It returns http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
