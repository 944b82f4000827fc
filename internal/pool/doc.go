// Package pool maintains a bounded set of RESP2 connections to the remote
// store.
//
// Callers lease a connection with Acquire, use it for one operation and hand
// it back with Release (or Discard when it is known to be broken). Most code
// uses Do, which wraps the whole lease and retries once on a broken
// connection.
//
// Invariants:
//
//   - leased + idle never exceeds MaxTotal; Acquire blocks while all
//     MaxTotal connections are leased, bounded by MaxWait and the caller's
//     context
//   - at most MaxIdle connections are parked; extras are closed on Release
//   - the evictor only inspects idle connections, never leased ones
//
// A liveness check is PING answered by PONG. A connection that fails a
// check is closed and never handed out.
package pool
