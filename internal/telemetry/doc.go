// Package telemetry wires OpenTelemetry tracing and metrics for spiralmind.
//
// Spans are exported over OTLP (gRPC or HTTP/protobuf) and carry the
// knowledge, gateway and router operations. HTTP request metrics go out
// through the meter provider; domain counters are served separately by the
// Prometheus registry on /metrics.
//
// # Usage
//
//	cfg := telemetry.FromSettings(appCfg.Telemetry, version)
//	tel, err := telemetry.New(ctx, cfg, logger)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(ctx)
//
// # Configuration
//
//	telemetry:
//	  enabled: true
//	  endpoint: "localhost:4317"
//	  protocol: grpc        # or http/protobuf
//	  service_name: "spiralmind"
//	  sample_rate: 1.0
//
// # Error Handling
//
// Exporter failures never stop the process. New marks the instance degraded,
// logs a warning and falls back to the global no-op providers.
//
// # Testing
//
//	tt := telemetry.NewTestTelemetry()
//	_, span := tt.Tracer("test").Start(ctx, "knowledge.Recall")
//	span.End()
//	tt.AssertSpanExists(t, "knowledge.Recall")
package telemetry
