// Package tlsroots builds the client TLS configuration used to reach the
// store: a root pool (system roots plus an optional CA bundle) and an
// optional client key pair that can be reloaded in place.
package tlsroots
