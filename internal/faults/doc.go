// Package faults defines the broker's error taxonomy.
//
// Failures are tagged with one of the sentinel markers so handlers can decide
// locally whether to requeue work, tear down a session, or report an error
// status to the producer, and so logs carry a stable error_kind label.
package faults
