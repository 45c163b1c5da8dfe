// Package router classifies chat utterances and dispatches them to the
// knowledge store, session memory and external gateway.
//
// Recognized forms (case-insensitive):
//
//	define X / defin X    look X up externally and learn it
//	what is X             recall X, falling back to the gateway
//	X - meaning           learn meaning for X directly
//
// After a total miss the router asks the user to define the concept; the
// next plain utterance in that session is learned as its definition.
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/spiralmind/internal/concept"
	"github.com/fyrsmithlabs/spiralmind/internal/gateway"
	"github.com/fyrsmithlabs/spiralmind/internal/knowledge"
	"github.com/fyrsmithlabs/spiralmind/internal/logging"
	"github.com/fyrsmithlabs/spiralmind/internal/metrics"
	"github.com/fyrsmithlabs/spiralmind/internal/session"
)

var tracer = otel.Tracer("github.com/fyrsmithlabs/spiralmind/internal/router")

// Kind classifies a response.
type Kind string

const (
	KindInvalid     Kind = "invalid"
	KindContextual  Kind = "contextual"
	KindRecall      Kind = "recall"
	KindLearned     Kind = "learned"
	KindTaught      Kind = "taught"
	KindTeachBack   Kind = "teach_back"
	KindUnavailable Kind = "unavailable"
	KindUnrelated   Kind = "unrelated"
)

// Fixed replies.
const (
	MsgInvalid       = "Please enter a valid message."
	MsgSpecifyDefine = "Please specify what to define."
	MsgStillLearning = "I am still learning! Try asking 'Define Quantum Computing' or 'What is Gravity'."
	MsgUnavailable   = "Sorry, I couldn't reach my knowledge sources right now. Please try again later."
)

// Learning sources for metrics.
const (
	SourceGateway = "gateway"
	SourceManual  = "manual"
	SourceTeach   = "teach"
)

const (
	prefixDefine = "define "
	prefixTypo   = "defin "
	prefixWhatIs = "what is "
	teachSep     = " - "
)

// Knowledge is the part of the knowledge store the router uses.
type Knowledge interface {
	Learn(ctx context.Context, concept, explanation string) error
	Recall(ctx context.Context, concept string) (string, error)
	Has(concept string) bool
}

// Response is the outcome of one utterance.
type Response struct {
	Text      string `json:"response"`
	Kind      Kind   `json:"kind"`
	Concept   string `json:"concept,omitempty"`
	SessionID string `json:"session_id"`
}

// Options configures a Router.
type Options struct {
	Store    Knowledge
	Gateway  gateway.Gateway
	Sessions *session.Manager
	Logger   *logging.Logger
	Metrics  *metrics.Metrics
}

// Router dispatches utterances. Safe for concurrent use.
type Router struct {
	store    Knowledge
	gateway  gateway.Gateway
	sessions *session.Manager
	logger   *logging.Logger
	metrics  *metrics.Metrics
}

// New creates a Router. A nil Gateway disables external lookups and a nil
// Sessions gets a default manager.
func New(opts Options) (*Router, error) {
	if opts.Store == nil {
		return nil, errors.New("router requires a knowledge store")
	}
	if opts.Gateway == nil {
		opts.Gateway = gateway.NewChain(nil, nil, nil)
	}
	if opts.Sessions == nil {
		opts.Sessions = session.NewManager(session.DefaultCapacity, 0)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return &Router{
		store:    opts.Store,
		gateway:  opts.Gateway,
		sessions: opts.Sessions,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}, nil
}

// Submit routes one utterance within a session. An empty sessionID starts
// a new session whose id is returned in the response.
func (r *Router) Submit(ctx context.Context, sessionID, utterance string) Response {
	id, sess := r.sessions.Get(sessionID)
	ctx = logging.WithSessionID(ctx, id)

	ctx, span := tracer.Start(ctx, "router.Submit")
	defer span.End()

	resp := r.dispatch(ctx, sess, strings.TrimSpace(utterance))
	resp.SessionID = id

	span.SetAttributes(
		attribute.String("kind", string(resp.Kind)),
		attribute.String("concept", resp.Concept),
	)
	r.metrics.Routed(string(resp.Kind))
	r.logger.Debug(ctx, "utterance routed",
		zap.String("kind", string(resp.Kind)),
		zap.String("concept", resp.Concept))
	return resp
}

func (r *Router) dispatch(ctx context.Context, sess *session.Context, input string) Response {
	if input == "" {
		return Response{Text: MsgInvalid, Kind: KindInvalid}
	}

	lower := strings.ToLower(input)
	if strings.HasPrefix(lower, prefixTypo) {
		input = prefixDefine + input[len(prefixTypo):]
		lower = strings.ToLower(input)
	}

	switch {
	case lower == strings.TrimSpace(prefixDefine) || lower == strings.TrimSpace(prefixTypo):
		return Response{Text: MsgSpecifyDefine, Kind: KindInvalid}

	case strings.HasPrefix(lower, prefixDefine):
		sess.TakePending()
		subject := strings.TrimSpace(input[len(prefixDefine):])
		defer sess.Record(subject)
		return r.define(ctx, sess, subject)

	case strings.HasPrefix(lower, prefixWhatIs):
		sess.TakePending()
		subject := strings.TrimSpace(strings.TrimRight(input[len(prefixWhatIs):], "? "))
		defer sess.Record(subject)
		return r.whatIs(ctx, sess, subject)
	}

	if c, meaning, ok := splitTeaching(input); ok {
		sess.TakePending()
		defer sess.Record(c)
		return r.teach(ctx, c, meaning, SourceManual)
	}

	if pending, ok := sess.TakePending(); ok {
		defer sess.Record(input)
		return r.teach(ctx, pending.String(), input, SourceTeach)
	}

	defer sess.Record(input)
	if text, ok := sess.ContextualLookup(ctx, input, r.store); ok {
		r.metrics.Recall(metrics.ResultContextual)
		return Response{Text: text, Kind: KindContextual, Concept: concept.Normalize(input).String()}
	}
	return Response{Text: MsgStillLearning, Kind: KindUnrelated}
}

// define always consults the gateway, even for known concepts.
func (r *Router) define(ctx context.Context, sess *session.Context, subject string) Response {
	c := concept.Normalize(subject)
	if c.IsZero() {
		return Response{Text: MsgSpecifyDefine, Kind: KindInvalid}
	}
	return r.lookupAndLearn(ctx, sess, subject)
}

func (r *Router) whatIs(ctx context.Context, sess *session.Context, subject string) Response {
	c := concept.Normalize(subject)
	if c.IsZero() {
		return Response{Text: MsgStillLearning, Kind: KindUnrelated}
	}

	if !r.store.Has(c.String()) {
		if text, ok := sess.ContextualLookup(ctx, c.String(), r.store); ok {
			r.metrics.Recall(metrics.ResultContextual)
			return Response{Text: text, Kind: KindContextual, Concept: c.String()}
		}
	}

	text, err := r.store.Recall(ctx, c.String())
	switch {
	case err == nil:
		return Response{Text: text, Kind: KindRecall, Concept: c.String()}
	case errors.Is(err, knowledge.ErrConceptNotFound):
		return r.lookupAndLearn(ctx, sess, subject)
	default:
		r.logger.Warn(ctx, "recall failed", zap.String("concept", c.String()), zap.Error(err))
		return Response{Text: MsgUnavailable, Kind: KindUnavailable, Concept: c.String()}
	}
}

// lookupAndLearn queries the gateway with the subject as typed, since
// providers treat titles case-sensitively, and learns under its concept key.
func (r *Router) lookupAndLearn(ctx context.Context, sess *session.Context, subject string) Response {
	c := concept.Normalize(subject)
	text, err := r.gateway.Lookup(ctx, strings.Join(strings.Fields(subject), " "))
	switch {
	case err == nil:
		r.learn(ctx, c.String(), text, SourceGateway)
		return Response{Text: text, Kind: KindLearned, Concept: c.String()}

	case errors.Is(err, gateway.ErrNotFound):
		sess.SetPending(c)
		return Response{
			Text:    fmt.Sprintf("I don't know about %s yet. Can you define it?", c),
			Kind:    KindTeachBack,
			Concept: c.String(),
		}

	default:
		r.logger.Warn(ctx, "external lookup failed", zap.String("concept", c.String()), zap.Error(err))
		return Response{Text: MsgUnavailable, Kind: KindUnavailable, Concept: c.String()}
	}
}

func (r *Router) teach(ctx context.Context, subject, meaning, source string) Response {
	c := concept.Normalize(subject)
	if !r.learn(ctx, c.String(), meaning, source) {
		return Response{Text: MsgInvalid, Kind: KindInvalid}
	}
	if source == SourceTeach {
		return Response{
			Text:    fmt.Sprintf("Thanks! I have learned that %s means: %s", c, meaning),
			Kind:    KindTaught,
			Concept: c.String(),
		}
	}
	return Response{
		Text:    fmt.Sprintf("Learned: %s - %s", c, meaning),
		Kind:    KindTaught,
		Concept: c.String(),
	}
}

// learn reports whether the explanation is now in memory. A persistence
// failure still counts: memory stays authoritative until the next save.
func (r *Router) learn(ctx context.Context, c, explanation, source string) bool {
	err := r.store.Learn(ctx, c, explanation)
	switch {
	case err == nil:
	case errors.Is(err, knowledge.ErrPersistence):
		r.logger.Warn(ctx, "learned concept not persisted", zap.String("concept", c), zap.Error(err))
	default:
		r.logger.Info(ctx, "rejected explanation", zap.String("concept", c), zap.Error(err))
		return false
	}
	r.metrics.Learned(source)
	return true
}

// splitTeaching parses "CONCEPT - meaning" with exactly one separator.
func splitTeaching(input string) (string, string, bool) {
	parts := strings.Split(input, teachSep)
	if len(parts) != 2 {
		return "", "", false
	}
	c, meaning := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	if c == "" || meaning == "" {
		return "", "", false
	}
	return c, meaning, true
}
