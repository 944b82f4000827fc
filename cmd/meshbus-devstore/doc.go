// Package main provides the entry point for meshbus-devstore.
//
// meshbus-devstore is a single-process, in-memory RESP2 store that speaks
// the command subset meshbus nodes use. It is meant for development and
// local testing, not production.
//
// Usage:
//
//	meshbus-devstore --addr 127.0.0.1:6379
//	meshbus-devstore --config devstore.yaml
//
// Settings are read from the YAML file, then MESHBUS_DEVSTORE_* variables,
// then flags.
package main
