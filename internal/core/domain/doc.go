// Package domain defines the error taxonomy shared by the meshbus packages.
//
// Every failure that crosses a package boundary is a *DomainError carrying a
// stable code:
//
//   - MB-CONN-*:  the store cannot be reached or the pool has no connection
//   - MB-POOL-*:  pool lifecycle and exhaustion
//   - MB-CODEC-*: payloads that do not match the requested shape
//   - MB-STORE-*: the store answered with an error on a healthy connection
//   - MB-CONF-*:  configuration validation
//
// Callers match with errors.Is against the sentinels below or with
// IsDomainError when only the code matters.
package domain
