package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Broker contains the TCP listener and protocol limits.
type Broker struct {
	Bind                    string `toml:"bind"`
	Port                    int    `toml:"port"`
	MaxPayloadBytes         int64  `toml:"max_payload_bytes"`
	DequeueTimeoutMillis    int    `toml:"dequeue_timeout_ms"`
	HandshakeTimeoutSeconds int    `toml:"handshake_timeout_seconds"`
}

// Paths contains directories for runtime state and logs.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Codec contains reassembly and frame extraction settings.
type Codec struct {
	// Format selects the deliverable: "mp4" (ffmpeg), "mjpeg" (concatenated
	// JPEG stream), or "av1" (ffmpeg intermediate re-encoded with drapto).
	Format        string `toml:"format"`
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
	VideoCodec    string `toml:"video_codec"`
	WorkDir       string `toml:"work_dir"`
}

// Worker contains settings for `framebroker worker` processes.
type Worker struct {
	BrokerAddress    string `toml:"broker_address"`
	JPEGQuality      int    `toml:"jpeg_quality"`
	ReconnectSeconds int    `toml:"reconnect_seconds"`
}

// Producer contains settings for `framebroker submit`.
type Producer struct {
	BrokerAddress  string `toml:"broker_address"`
	JPEGQuality    int    `toml:"jpeg_quality"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// History contains settings for the finished-job ledger.
type History struct {
	Enabled       bool `toml:"enabled"`
	RetentionDays int  `toml:"retention_days"`
}

// Notifications contains ntfy settings for finished-job alerts.
type Notifications struct {
	// NtfyTopic is the full topic URL, e.g. https://ntfy.sh/my-frames. Empty
	// disables notifications.
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	NotifyDelivered       bool   `toml:"notify_delivered"`
	NotifyAbandoned       bool   `toml:"notify_abandoned"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for framebroker.
//
// Configuration sections by subsystem:
//   - Broker: listen address, payload ceiling, dispatch timing
//   - Paths: state and log directories
//   - Codec: reassembly format and external binaries
//   - Worker: frame-processing node settings
//   - Producer: submit client settings
//   - History: job ledger
//   - Notifications: ntfy alerts for finished jobs
//   - Logging: log format, level, and retention
type Config struct {
	Broker        Broker        `toml:"broker"`
	Paths         Paths         `toml:"paths"`
	Codec         Codec         `toml:"codec"`
	Worker        Worker        `toml:"worker"`
	Producer      Producer      `toml:"producer"`
	History       History       `toml:"history"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("framebroker.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for broker operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Codec.WorkDir) != "" {
		if err := os.MkdirAll(c.Codec.WorkDir, 0o755); err != nil {
			return fmt.Errorf("create codec work directory %q: %w", c.Codec.WorkDir, err)
		}
	}
	return nil
}

// ListenAddress returns the host:port the broker binds.
func (c *Config) ListenAddress() string {
	return net.JoinHostPort(c.Broker.Bind, strconv.Itoa(c.Broker.Port))
}

// MaxPayload returns the framing ceiling as the width the wire codec expects.
func (c *Config) MaxPayload() uint32 {
	return uint32(c.Broker.MaxPayloadBytes)
}

// DequeueTimeout returns how long an idle worker handler waits for work
// before re-checking for shutdown.
func (c *Config) DequeueTimeout() time.Duration {
	return time.Duration(c.Broker.DequeueTimeoutMillis) * time.Millisecond
}

// HandshakeTimeout returns the deadline for reading a connection's identity
// tag. Zero disables the deadline.
func (c *Config) HandshakeTimeout() time.Duration {
	return time.Duration(c.Broker.HandshakeTimeoutSeconds) * time.Second
}

// ReconnectDelay returns the pause between worker reconnect attempts.
func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.Worker.ReconnectSeconds) * time.Second
}

// ProducerTimeout returns the overall submit deadline. Zero means none.
func (c *Config) ProducerTimeout() time.Duration {
	return time.Duration(c.Producer.TimeoutSeconds) * time.Second
}

// NotificationTimeout returns the per-request ntfy deadline.
func (c *Config) NotificationTimeout() time.Duration {
	return time.Duration(c.Notifications.RequestTimeoutSeconds) * time.Second
}

// SocketPath returns the admin IPC socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.StateDir, "framebroker.sock")
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "framebroker.lock")
}

// PIDPath returns the broker pid file location.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.StateDir, "framebroker.pid")
}

// HistoryPath returns the job history database location.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
