package mcp

import (
	"context"
	"fmt"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/spiralmind/internal/concept"
	"github.com/fyrsmithlabs/spiralmind/internal/router"
)

// ConceptStore is the part of the knowledge store the tools use.
type ConceptStore interface {
	Learn(ctx context.Context, concept, explanation string) error
	Recall(ctx context.Context, concept string) (string, error)
	FindRelated(concept string) []concept.Concept
}

// Chatter routes chat utterances.
type Chatter interface {
	Submit(ctx context.Context, sessionID, utterance string) router.Response
}

// Server is the spiralmind MCP server.
type Server struct {
	mcp     *mcp.Server
	store   ConceptStore
	router  Chatter
	metrics *Metrics
	logger  *zap.Logger

	// A stdio server has one client, so ask calls without a session id
	// share this one.
	sessionMu sync.Mutex
	sessionID string
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "spiralmind")
	Name string

	// Version is the server version (default: "dev")
	Version string

	// Logger for structured logging. MCP owns stdout, so it must write
	// elsewhere.
	Logger *zap.Logger

	// Meter records tool metrics. Nil uses the global meter provider.
	Meter metric.Meter
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "spiralmind",
		Version: "dev",
		Logger:  zap.NewNop(),
	}
}

// NewServer creates an MCP server with all tools registered.
func NewServer(cfg *Config, store ConceptStore, chatter Chatter) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if store == nil {
		return nil, fmt.Errorf("concept store is required")
	}
	if chatter == nil {
		return nil, fmt.Errorf("router is required")
	}

	s := &Server{
		mcp: mcp.NewServer(
			&mcp.Implementation{
				Name:    cfg.Name,
				Version: cfg.Version,
			},
			nil,
		),
		store:   store,
		router:  chatter,
		metrics: NewMetrics(cfg.Meter, cfg.Logger),
		logger:  cfg.Logger,
	}
	s.registerTools()

	return s, nil
}

// Run serves MCP on stdin/stdout until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport")
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}

// MCPServer returns the underlying SDK server, for in-memory transports.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

func (s *Server) defaultSession() string {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	return s.sessionID
}

func (s *Server) rememberSession(id string) {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	if s.sessionID == "" {
		s.sessionID = id
	}
}
