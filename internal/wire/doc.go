// Package wire implements the broker's TCP protocol: length-prefixed frames,
// the fixed-width identity tag sent at connection start, and the payload
// shapes carried inside frames (session metadata, indexed frames, status).
//
// Every message on every connection is
//
//	[4 bytes big-endian length][length bytes payload]
//
// The codec itself enforces no ceiling; callers pass the configured maximum to
// ReadFrame so an oversized declaration is rejected before any allocation.
package wire
