package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"framebroker/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Broker.Bind = "127.0.0.1"
	cfgVal.Broker.DequeueTimeoutMillis = 20
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Codec.Format = "mjpeg"
	cfgVal.Codec.WorkDir = filepath.Join(base, "work")
	cfgVal.Worker.BrokerAddress = "127.0.0.1:8080"
	cfgVal.Worker.ReconnectSeconds = 1
	cfgVal.Producer.BrokerAddress = "127.0.0.1:8080"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithCodecFormat overrides the reassembly format on the test config.
func WithCodecFormat(format string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Codec.Format = format
	}
}

// WithMaxPayload overrides the framing ceiling on the test config.
func WithMaxPayload(n int64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Broker.MaxPayloadBytes = n
	}
}

// WithBrokerAddress points worker and producer settings at addr.
func WithBrokerAddress(addr string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Worker.BrokerAddress = addr
		b.cfg.Producer.BrokerAddress = addr
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg and ffprobe are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
