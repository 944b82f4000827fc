// Package node wires the coordination layer together.
//
// A Node owns the connection pool, the shared worker pool, the cache store
// and the messenger. Start builds the pool, tests the connection and only
// then creates the cache and the messenger; when the store cannot be
// reached the node logs it once and runs without them.
package node
