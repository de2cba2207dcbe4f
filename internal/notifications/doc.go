// Package notifications posts finished-job alerts to an ntfy topic.
//
// The Service satisfies broker.Recorder so the daemon can hand it every
// finished session alongside the history ledger. Without a configured topic
// NewService returns a no-op implementation.
package notifications
