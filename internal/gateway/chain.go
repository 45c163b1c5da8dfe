package gateway

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/spiralmind/internal/metrics"
)

var tracer = otel.Tracer("github.com/fyrsmithlabs/spiralmind/internal/gateway")

// Chain tries providers in order and returns the first definition found.
//
// When every provider fails, a definite miss from any provider wins over
// transport failures, so the caller can offer teach-back. Otherwise a
// timeout is reported ahead of a plain unreachable error.
type Chain struct {
	providers []Provider
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewChain creates a chain over providers. A chain with no providers
// reports ErrNotFound for every query.
func NewChain(providers []Provider, logger *zap.Logger, m *metrics.Metrics) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{providers: providers, logger: logger, metrics: m}
}

// Providers returns the provider names in fallback order.
func (c *Chain) Providers() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}

// Lookup implements Gateway.
func (c *Chain) Lookup(ctx context.Context, query string) (string, error) {
	ctx, span := tracer.Start(ctx, "gateway.Lookup")
	defer span.End()
	span.SetAttributes(attribute.String("query", query))

	var notFound, timedOut, unreachable error
	for _, p := range c.providers {
		text, err := p.Lookup(ctx, query)
		c.metrics.GatewayLookup(p.Name(), result(err))
		if err == nil {
			c.logger.Debug("gateway lookup succeeded",
				zap.String("provider", p.Name()),
				zap.String("query", query))
			span.SetAttributes(attribute.String("provider", p.Name()))
			return text, nil
		}

		c.logger.Debug("gateway provider failed, trying next",
			zap.String("provider", p.Name()),
			zap.String("query", query),
			zap.Error(err))

		switch {
		case errors.Is(err, ErrNotFound):
			notFound = err
		case errors.Is(err, ErrTimeout):
			timedOut = err
		default:
			unreachable = err
		}

		if ctx.Err() != nil {
			break
		}
	}

	var err error
	switch {
	case notFound != nil:
		err = notFound
	case timedOut != nil:
		err = timedOut
	case unreachable != nil:
		err = unreachable
	default:
		err = fmt.Errorf("%w: no providers configured", ErrNotFound)
	}
	if !errors.Is(err, ErrNotFound) {
		span.SetStatus(codes.Error, err.Error())
	}
	return "", err
}
