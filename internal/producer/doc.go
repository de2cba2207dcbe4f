// Package producer is the client side of a broker session: it sends
// metadata and indexed frames, then waits for the status frame and the
// reassembled result.
package producer
