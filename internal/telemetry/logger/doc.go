// Package logger provides structured logging for meshbus.
//
// It wraps the standard library log/slog:
//
//   - logger.go: Logger interface, construction and dynamic level control
//   - context.go: node ID and message type propagation through context
//   - redact.go: masking of credentials in attributes and store URLs
//
// Components receive a Logger explicitly; the package-level default exists
// for binaries and for code paths that have no logger injected.
package logger
