// Package config defines the node configuration.
//
//   - spec.go: Config struct definition (koanf tags)
//   - default.go: default values
//   - verify.go: validation
//   - sanitize.go: masking of secrets for logging
//
// Configuration is loaded with internal/infra/confloader from a YAML file,
// MESHBUS_ environment variables and command-line flags.
package config
