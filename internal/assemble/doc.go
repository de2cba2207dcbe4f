// Package assemble turns a session's processed frames, already in ascending
// index order, into the single blob delivered to the producer.
//
// Three formats are available: MJPEG concatenates the JPEG frames in pure Go,
// FFmpeg encodes an MP4 with the configured video codec, and AV1 re-encodes
// that MP4 through the drapto library. A session with zero frames yields an
// empty blob in every format.
package assemble
