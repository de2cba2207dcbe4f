// Package broker accepts TCP connections, classifies each one by its
// identity tag, and runs the producer and worker handlers that move frames
// between them.
//
// A producer connection opens a session, streams indexed frames that are
// pushed onto the shared dispatch queue, then blocks until every frame has a
// processed result. A worker connection pulls items from that queue one at a
// time, sends them, and records the returned frame against the session the
// item came from. Work that a worker fails to return is requeued; results
// that arrive after their session closed are discarded.
//
// The queue, session registry, and worker set are injected objects with
// their own locks, so tests can observe broker state without reaching into
// package globals.
package broker
