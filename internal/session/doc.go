// Package session tracks producer jobs while their frames are in flight.
//
// A Registry maps session identifiers (the producer's remote address) to
// Session records. Each Session owns its own lock, so results recorded by
// worker handlers and the completion check never observe a torn state, and
// exposes a one-shot Done channel closed when the last frame lands.
package session
