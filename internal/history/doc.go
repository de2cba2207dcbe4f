// Package history persists an append-only ledger of finished producer jobs in
// SQLite.
//
// The ledger is written once per session when the broker tears it down and is
// only read for operator reporting (`framebroker history`, the admin status
// socket). Broker state is never recovered from it: queued work and live
// sessions still vanish with the process.
package history
