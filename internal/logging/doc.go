// Package logging provides structured logging for spiralmind.
//
// Logger wraps Zap with context-aware methods that attach correlation
// fields (trace_id and span_id from OpenTelemetry, session.id, request.id)
// to every entry:
//
//	logger, err := logging.NewLogger(logging.NewDefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithSessionID(ctx, sessionID)
//	logger.Info(ctx, "utterance routed", zap.String("kind", "recall"))
//
// Packages that log without request context (the knowledge store, the
// gateway chain) take the *zap.Logger returned by Underlying.
//
// Entries below Error are sampled per tick; Error and above never are.
// In MCP stdio mode the output must be "stderr" because stdout carries
// the protocol.
//
// Tests use NewTestLogger and its Assert helpers.
package logging
