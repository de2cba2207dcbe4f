package config

const (
	defaultConfigPath              = "~/.config/framebroker/config.toml"
	defaultBind                    = "0.0.0.0"
	defaultPort                    = 8080
	defaultMaxPayloadBytes         = 10 << 20
	defaultDequeueTimeoutMillis    = 1000
	defaultHandshakeTimeoutSeconds = 10
	defaultStateDir                = "~/.local/share/framebroker"
	defaultLogDir                  = "~/.local/share/framebroker/logs"
	defaultCodecFormat             = "mp4"
	defaultFFmpegBinary            = "ffmpeg"
	defaultFFprobeBinary           = "ffprobe"
	defaultVideoCodec              = "libx264"
	defaultBrokerAddress           = "127.0.0.1:8080"
	defaultJPEGQuality             = 90
	defaultReconnectSeconds        = 3
	defaultHistoryRetentionDays    = 30
	defaultNotifyTimeoutSeconds    = 10
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultLogRetentionDays        = 14

	// BrokerAddressEnv overrides worker.broker_address and
	// producer.broker_address when they are not set in the file.
	BrokerAddressEnv = "FRAMEBROKER_BROKER"
)

// CodecFormats lists the accepted codec.format values.
var CodecFormats = []string{"mp4", "mjpeg", "av1"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Broker: Broker{
			Bind:                    defaultBind,
			Port:                    defaultPort,
			MaxPayloadBytes:         defaultMaxPayloadBytes,
			DequeueTimeoutMillis:    defaultDequeueTimeoutMillis,
			HandshakeTimeoutSeconds: defaultHandshakeTimeoutSeconds,
		},
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Codec: Codec{
			Format:        defaultCodecFormat,
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
			VideoCodec:    defaultVideoCodec,
		},
		Worker: Worker{
			JPEGQuality:      defaultJPEGQuality,
			ReconnectSeconds: defaultReconnectSeconds,
		},
		Producer: Producer{
			JPEGQuality: defaultJPEGQuality,
		},
		History: History{
			Enabled:       true,
			RetentionDays: defaultHistoryRetentionDays,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNotifyTimeoutSeconds,
			NotifyDelivered:       true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
