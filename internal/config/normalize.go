package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeBroker()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeCodec(); err != nil {
		return err
	}
	c.normalizeWorker()
	c.normalizeProducer()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeBroker() {
	c.Broker.Bind = strings.TrimSpace(c.Broker.Bind)
	if c.Broker.Bind == "" {
		c.Broker.Bind = defaultBind
	}
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeCodec() error {
	c.Codec.Format = strings.ToLower(strings.TrimSpace(c.Codec.Format))
	if c.Codec.Format == "" {
		c.Codec.Format = defaultCodecFormat
	}
	c.Codec.FFmpegBinary = strings.TrimSpace(c.Codec.FFmpegBinary)
	if c.Codec.FFmpegBinary == "" {
		c.Codec.FFmpegBinary = defaultFFmpegBinary
	}
	c.Codec.FFprobeBinary = strings.TrimSpace(c.Codec.FFprobeBinary)
	if c.Codec.FFprobeBinary == "" {
		c.Codec.FFprobeBinary = defaultFFprobeBinary
	}
	c.Codec.VideoCodec = strings.TrimSpace(c.Codec.VideoCodec)
	if c.Codec.VideoCodec == "" {
		c.Codec.VideoCodec = defaultVideoCodec
	}
	if strings.TrimSpace(c.Codec.WorkDir) != "" {
		var err error
		if c.Codec.WorkDir, err = expandPath(c.Codec.WorkDir); err != nil {
			return fmt.Errorf("codec.work_dir: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeWorker() {
	c.Worker.BrokerAddress = brokerAddressFallback(c.Worker.BrokerAddress)
}

func (c *Config) normalizeProducer() {
	c.Producer.BrokerAddress = brokerAddressFallback(c.Producer.BrokerAddress)
}

func brokerAddressFallback(value string) string {
	value = strings.TrimSpace(value)
	if value != "" {
		return value
	}
	if env, ok := os.LookupEnv(BrokerAddressEnv); ok && strings.TrimSpace(env) != "" {
		return strings.TrimSpace(env)
	}
	return defaultBrokerAddress
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNotifyTimeoutSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
