// Package observability exports the client's spans and metrics through OpenTelemetry.
//
// Telemetry is configured by the telemetry section of the fetch configuration. When it is
// disabled NewProvider returns a no-op provider, so callers never need to branch on it.
// The "stdout" endpoint pretty prints spans and metrics to a writer; any other endpoint is
// an OTLP collector reached over HTTP or gRPC.
package observability
