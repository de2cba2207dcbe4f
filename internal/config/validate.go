package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"slices"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateBroker(); err != nil {
		return err
	}
	if err := c.validateCodec(); err != nil {
		return err
	}
	if err := c.validateWorker(); err != nil {
		return err
	}
	if err := c.validateProducer(); err != nil {
		return err
	}
	if err := c.validateHistory(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateBroker() error {
	if c.Broker.Port < 1 || c.Broker.Port > 65535 {
		return fmt.Errorf("broker.port must be between 1 and 65535, got %d", c.Broker.Port)
	}
	if c.Broker.MaxPayloadBytes <= 0 {
		return errors.New("broker.max_payload_bytes must be positive")
	}
	if c.Broker.MaxPayloadBytes > 1<<32-1 {
		return errors.New("broker.max_payload_bytes must fit the 32-bit length prefix")
	}
	if c.Broker.DequeueTimeoutMillis <= 0 {
		return errors.New("broker.dequeue_timeout_ms must be positive")
	}
	if c.Broker.HandshakeTimeoutSeconds < 0 {
		return errors.New("broker.handshake_timeout_seconds must be zero or positive")
	}
	return nil
}

func (c *Config) validateCodec() error {
	if !slices.Contains(CodecFormats, c.Codec.Format) {
		return fmt.Errorf("codec.format must be one of %s, got %q", strings.Join(CodecFormats, ", "), c.Codec.Format)
	}
	return nil
}

func (c *Config) validateWorker() error {
	if err := validateAddress("worker.broker_address", c.Worker.BrokerAddress); err != nil {
		return err
	}
	if c.Worker.JPEGQuality < 1 || c.Worker.JPEGQuality > 100 {
		return errors.New("worker.jpeg_quality must be between 1 and 100")
	}
	if c.Worker.ReconnectSeconds < 0 {
		return errors.New("worker.reconnect_seconds must be zero or positive")
	}
	return nil
}

func (c *Config) validateProducer() error {
	if err := validateAddress("producer.broker_address", c.Producer.BrokerAddress); err != nil {
		return err
	}
	if c.Producer.JPEGQuality < 1 || c.Producer.JPEGQuality > 100 {
		return errors.New("producer.jpeg_quality must be between 1 and 100")
	}
	if c.Producer.TimeoutSeconds < 0 {
		return errors.New("producer.timeout_seconds must be zero or positive")
	}
	return nil
}

func (c *Config) validateHistory() error {
	if c.History.RetentionDays < 0 {
		return errors.New("history.retention_days must be zero or positive")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	parsed, err := url.Parse(topic)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("notifications.ntfy_topic must be an http(s) URL, got %q", topic)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be zero or positive")
	}
	return nil
}

func validateAddress(key, value string) error {
	if _, _, err := net.SplitHostPort(value); err != nil {
		return fmt.Errorf("%s must be host:port: %w", key, err)
	}
	return nil
}
