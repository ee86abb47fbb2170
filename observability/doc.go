// Package observability provides OpenTelemetry metric instruments for
// registry and config-server operations.
//
// Only the OTel API is used; no provider or exporter is configured here.
// The host application installs its own meter provider, and without one
// the instruments are no-ops. Rendering metrics in any exposition format
// is left to the host.
package observability
