// Package config reads and writes the meshbus-cli profile file.
//
// The file lives at ~/.meshbus/cli.yaml by default and holds named store
// connection profiles plus the defaults used when no flag overrides them.
package config
