// Package ipc exposes the daemon over JSON-RPC on a Unix socket and ships
// the matching client used by the CLI.
//
// It owns socket lifecycle management, the request/response DTOs, and the
// conversion from broker and history models to those DTOs. Keep the DTO
// field names stable: `framebroker status` and `framebroker history` decode
// them directly.
package ipc
