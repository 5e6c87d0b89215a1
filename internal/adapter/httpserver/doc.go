// Package httpserver exposes the monitor over HTTP: the vitals REST API, the live
// WebSocket subscription endpoint, the monitor page, health probes and /metrics.
package httpserver
