// Package filter implements the frame transform applied by worker nodes: a
// teal/orange grade, an S-curve contrast lookup, a gaussian vignette, and
// letterbox bars covering 12% of the height at top and bottom.
//
// The transform is a pure function of the input JPEG, so a frame processed
// twice after a worker failure yields identical bytes.
package filter
