// Package node implements the processing worker: it connects to a broker,
// identifies itself as a worker, and answers every work item with the
// cinematic-filtered frame under the same index.
package node
