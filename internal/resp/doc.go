// Package resp implements the subset of the RESP2 wire protocol meshbus needs.
//
// The client side (WriteCommand, ReadValue) is used by the connection pool to
// talk to the remote store. The server side (ReadCommand and the Write*
// helpers) backs the in-process development store.
//
// Only the Go standard library is used; the protocol is small enough that a
// dependency would add more surface than it removes.
package resp
