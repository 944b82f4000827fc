// Package main provides the entry point for meshbus-node.
//
// meshbus-node hosts the coordination layer for one server of a cluster:
//
//   - a pooled connection to the shared store
//   - the namespaced cache
//   - the messenger, with handlers for player_message, server_event and
//     sync_data
//   - a Prometheus endpoint, when metrics are enabled
//
// Usage:
//
//	meshbus-node [flags]
//	meshbus-node --config /etc/meshbus/node.yaml
//
// Configuration comes from the YAML file and MESHBUS_* environment
// variables. Changes to log.level and debug in the file apply without a
// restart, as does a renewed client certificate.
package main
