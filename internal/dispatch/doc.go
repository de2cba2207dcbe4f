// Package dispatch provides the broker's single shared work queue.
//
// The queue is FIFO across every session and worker. Requeued items go to
// the back, so retries are not prioritized and one busy session can delay
// another; the only guarantee is that an item is never lost while it sits in
// the queue.
package dispatch
