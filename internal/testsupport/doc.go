// Package testsupport provides fixtures shared by package tests: temp-rooted
// configs, stub binaries on PATH, an opened history ledger, and small JPEG
// frames.
package testsupport
