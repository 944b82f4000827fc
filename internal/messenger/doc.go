// Package messenger exchanges typed envelopes between nodes over the
// store's pub/sub channels.
//
// Every node subscribes to a direct channel and a broadcast channel on a
// dedicated connection. Inbound envelopes are decoded, envelopes sent by
// the node itself are dropped, and the rest are dispatched to the handler
// registered for their type. Handlers run one at a time on the
// subscription goroutine.
package messenger
