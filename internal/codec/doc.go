// Package codec converts cached values and message envelopes to and from
// their textual wire form.
//
// Structured values are JSON. Primitives stored through the typed cache
// wrappers use their bare textual form ("42", "true", "1.5") so that other
// store clients can read them directly.
package codec
