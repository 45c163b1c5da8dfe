package gateway

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"
)

// Limited throttles lookups against the wrapped gateway so public APIs are
// not hammered by a busy front end.
type Limited struct {
	next    Gateway
	limiter *rate.Limiter
}

// NewLimited wraps next with a token bucket of the given rate and burst.
func NewLimited(next Gateway, limit rate.Limit, burst int) *Limited {
	return &Limited{next: next, limiter: rate.NewLimiter(limit, burst)}
}

// Lookup waits for a token, then delegates. A wait that cannot finish
// before the context deadline is reported as ErrTimeout.
func (l *Limited) Lookup(ctx context.Context, query string) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return "", fmt.Errorf("%w: rate limiter: %v", ErrUnreachable, err)
		}
		return "", fmt.Errorf("%w: rate limiter: %v", ErrTimeout, err)
	}
	return l.next.Lookup(ctx, query)
}
