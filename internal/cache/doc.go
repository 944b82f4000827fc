// Package cache is the namespaced key-value cache shared by every node.
//
// Every key is stored under the "grvutils:cache:" prefix; callers only ever
// see their logical keys. Values are text: plain strings as-is, primitives in
// their bare form and structured values as JSON (see package codec).
//
// Operations fail open. When the store is unreachable, or a stored value
// does not decode into the requested type, reads report absent and writes
// report false; the cause is logged. A read cannot tell a missing key from
// an unavailable store.
//
// Generic reads (GetObject, GetList, GetMap, GetSet) are package functions
// taking the Store, since Go methods cannot have type parameters.
package cache
