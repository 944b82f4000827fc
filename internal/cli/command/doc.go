// Package command provides the meshbus-cli command tree.
//
// Every command opens its own store connection from the global flags,
// optionally seeded by a profile from the CLI config file, and renders its
// result with the selected output format.
package command
