// Package logs reads the broker's JSON log files for `framebroker logs`.
//
// Tail returns the last N matching lines or everything after an offset, and
// can poll for new lines in follow mode. Entries are parsed once so filters
// on component, level, session, and job apply before the line limit.
package logs
