// Package daemon coordinates the long-running broker process.
//
// It wires configuration, the dispatch queue, the session registry, the
// reassembly codec, the history ledger, and ntfy notifications into a single
// lifecycle with flock-based locking to prevent two brokers sharing one state
// directory.
// The daemon also answers the status and history queries served over the
// admin socket.
//
// Keep orchestration here: framing, dispatch, and session bookkeeping live in
// their own packages while the daemon focuses on startup, shutdown, and
// reporting.
package daemon
