// Package httpserver provides the admin HTTP server of a meshbus node.
//
// It serves Prometheus metrics on /metrics and the node health on /healthz,
// behind request-id, access-log, rate-limit and panic-recovery middleware.
package httpserver
