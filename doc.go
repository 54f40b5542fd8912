// Package httpsink delivers structured records to HTTP endpoints in
// configurable batches.
//
// The core of the module is the sink package, which buffers records,
// formats them as JSON, delimited text, or a custom body template, and
// posts them with retry and error-classification policies driven by the
// response status code. URL placeholders of the form #field are resolved
// per record for PUT and DELETE requests, and OAuth2 bearer tokens are
// fetched and cached when configured.
//
// The output/httpsink package wraps a sink.Writer in a NATS-fed component
// with the usual Initialize/Start/Stop lifecycle, and cmd/httpsink ties it
// together into a standalone service with YAML configuration and a
// Prometheus metrics endpoint.
package httpsink
