// Package connection opens the store connection meshbus-cli commands run
// against.
package connection
