// Package config loads, normalizes, and validates framebroker configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the FRAMEBROKER_BROKER environment
// fallback for worker and producer processes. The Config type centralizes
// every knob the broker, worker, and submit commands need so listen
// addresses, payload ceilings, and codec binaries are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
