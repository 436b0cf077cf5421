// Package instrumentation provides OpenTelemetry (OTEL) instrumentation for
// the authd library.
//
// Metrics, traces, and structured logs cover the authorization server's
// layers: the HTTP adapter, the grant flows, and the storage backend.
//
// # Quick Start
//
//	inst, err := instrumentation.New(instrumentation.Config{
//		ServiceName:    "authd",
//		ServiceVersion: "1.0.0",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer inst.Shutdown(context.Background())
//
//	store.SetInstrumentation(inst)
//	srv.SetInstrumentation(inst)
//
// # Available Metrics
//
// HTTP layer:
//   - oauth.http.requests.total{method, endpoint, status}
//   - oauth.http.request.duration{endpoint}
//
// Grant flows:
//   - oauth.authorization.started{client_id}
//   - oauth.code.issued{client_id}
//   - oauth.code.exchanged{client_id}
//   - oauth.token.introspected{active}
//
// Security:
//   - oauth.rate_limit.exceeded{limiter_type}
//   - oauth.code.replay_detected
//   - oauth.audit.events.total{event_type}
//
// Storage:
//   - storage.operation.total{operation, result}
//   - storage.operation.duration{operation}
//   - storage.size.sessions / storage.size.codes / storage.size.tokens
//
// # Performance
//
// When instrumentation is not configured or disabled, no-op providers are
// used and there is no overhead.
//
// # Security Considerations
//
// Never record actual credential values (authorization codes, access tokens,
// client secrets, passwords) in traces or metrics. Only metadata such as
// client ids, token types, and validation results may be attached.
package instrumentation
