// Package output renders command results for meshbus-cli as a table, JSON
// or YAML.
package output
