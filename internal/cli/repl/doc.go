// Package repl provides the interactive shell behind `meshbus-cli shell`.
//
//   - repl.go: read loop, line splitting and built-in commands
//   - completer.go: prefix completion over the command tree
//   - history.go: command history persistence
package repl
