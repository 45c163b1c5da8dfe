// Package gateway looks up definitions for concepts the knowledge store does
// not know yet. Providers wrap public encyclopedic APIs; a Chain tries them in
// order and reports one normalized result.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/spiralmind/internal/metrics"
)

// Lookup failures. Every error returned by a Gateway wraps exactly one of these.
var (
	ErrNotFound        = errors.New("no definition found")
	ErrUnreachable     = errors.New("knowledge source unreachable")
	ErrTimeout         = errors.New("knowledge source timed out")
	ErrUnknownProvider = errors.New("unknown gateway provider")
)

// Provider names.
const (
	ProviderWikipedia  = "wikipedia"
	ProviderDuckDuckGo = "duckduckgo"
)

// Defaults.
const (
	DefaultTimeout       = 5 * time.Second
	DefaultUserAgent     = "spiralmind/1.0 (+https://github.com/fyrsmithlabs/spiralmind)"
	DefaultWikipediaURL  = "https://en.wikipedia.org/api/rest_v1/page/summary"
	DefaultDuckDuckGoURL = "https://api.duckduckgo.com/"
	DefaultRateLimit     = 2.0
	DefaultBurst         = 4

	maxResponseBytes = 1 << 20
)

// Gateway resolves a free-text query to a short definition.
type Gateway interface {
	Lookup(ctx context.Context, query string) (string, error)
}

// Provider is a Gateway backed by one named source.
type Provider interface {
	Gateway
	Name() string
}

// Func adapts a function to the Gateway interface.
type Func func(ctx context.Context, query string) (string, error)

// Lookup calls f.
func (f Func) Lookup(ctx context.Context, query string) (string, error) {
	return f(ctx, query)
}

// Config configures the gateway built by New.
type Config struct {
	// Providers in fallback order. Empty disables external lookups.
	Providers []string

	Timeout       time.Duration
	UserAgent     string
	WikipediaURL  string
	DuckDuckGoURL string

	// RateLimit is lookups per second across all providers; 0 disables limiting.
	RateLimit float64
	Burst     int
}

// New builds the configured provider chain, rate limited when requested.
func New(cfg Config, logger *zap.Logger, m *metrics.Metrics) (Gateway, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	client := &http.Client{Timeout: cfg.Timeout}

	providers := make([]Provider, 0, len(cfg.Providers))
	for _, name := range cfg.Providers {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case ProviderWikipedia:
			providers = append(providers, NewWikipedia(client, cfg.WikipediaURL, cfg.UserAgent, cfg.Timeout))
		case ProviderDuckDuckGo:
			providers = append(providers, NewDuckDuckGo(client, cfg.DuckDuckGoURL, cfg.UserAgent, cfg.Timeout))
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
		}
	}

	var gw Gateway = NewChain(providers, logger, m)
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = DefaultBurst
		}
		gw = NewLimited(gw, rate.Limit(cfg.RateLimit), burst)
	}
	return gw, nil
}

// classify maps a transport error onto ErrTimeout or ErrUnreachable.
func classify(source string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", ErrTimeout, source, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %s: %v", ErrTimeout, source, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrUnreachable, source, err)
}

// result labels an error for metrics.
func result(err error) string {
	switch {
	case err == nil:
		return metrics.ResultFound
	case errors.Is(err, ErrNotFound):
		return metrics.ResultNotFound
	case errors.Is(err, ErrTimeout):
		return metrics.ResultTimeout
	default:
		return metrics.ResultUnreachable
	}
}
