// Package agentlens captures execution spans from agent, tool, and workflow
// runtimes and delivers them to an OpenInference-compatible tracing backend
// over OTLP.
//
// # Guarantees
//
//   - Process Safety: agentlens never terminates the process (no os.Exit,
//     no panic on the hot path).
//   - Concurrency: span lifecycle, flush, and shutdown APIs are safe for
//     concurrent use from any number of goroutines.
//   - Failure Isolation: backend failures never reach span producers; only
//     Flush and Shutdown callers observe terminal delivery outcomes.
//   - Delivery: a closed span is delivered exactly once, dropped after
//     exhausting retries, or abandoned at shutdown timeout. It is never
//     duplicated, and never lost silently: every drop is logged and counted.
//
// # Architecture
//
//   - Capture: spans live in an arena keyed by identifier and are mapped
//     onto the backend schema synchronously at close.
//   - Buffering: closed spans accumulate in batches sealed on a size or
//     age trigger; sealing never loses or duplicates a record.
//   - Delivery: batches are serialized to the OTLP protobuf envelope and
//     posted over HTTPS (or gRPC) with exponential-backoff retry.
//
// agentlens is an export pipeline, not a general OpenTelemetry SDK: it does
// not propagate W3C trace context across processes and has no metrics model.
package agentlens
