// Package worker runs background work for the cache and messenger.
//
// Pool is a fixed set of goroutines draining a bounded queue. Submit never
// blocks: when the queue is full the item is rejected with ErrQueueFull and
// the caller decides what to do (the cache runs the task inline, the
// messenger reports the failure on the returned channel).
//
// Future carries the result of one asynchronous operation.
package worker
