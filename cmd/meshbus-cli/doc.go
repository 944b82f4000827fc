// Package main provides the entry point for meshbus-cli.
//
// meshbus-cli talks to the store a meshbus cluster shares: it reads and
// writes namespaced cache entries, publishes and observes messages, and
// offers an interactive shell.
package main
