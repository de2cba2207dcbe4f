// Package brokerrun hosts the broker process lifecycle shared by
// `framebroker serve` and the framebrokerd binary: signal handling, per-run
// log files, preflight checks, the pid file, the daemon, and the admin socket.
package brokerrun
