// Package ffprobe provides a typed wrapper around ffprobe JSON output, reduced
// to what the producer needs to describe a video job: the primary video
// stream's dimensions, frame rate, and frame count.
package ffprobe
