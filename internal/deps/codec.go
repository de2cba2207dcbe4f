package deps

import (
	"framebroker/internal/config"
)

// CodecRequirements lists the binaries the broker needs to reassemble
// sessions in cfg's codec format. Motion JPEG needs none.
func CodecRequirements(cfg *config.Config) []Requirement {
	if cfg == nil {
		return nil
	}
	switch cfg.Codec.Format {
	case "mjpeg":
		return nil
	case "av1":
		return []Requirement{{
			Name:        "FFmpeg",
			Command:     cfg.Codec.FFmpegBinary,
			Description: "Builds the intermediate video and runs the AV1 encode",
		}}
	default:
		return []Requirement{{
			Name:        "FFmpeg",
			Command:     cfg.Codec.FFmpegBinary,
			Description: "Encodes completed sessions to MP4",
		}}
	}
}

// SubmitRequirements lists the binaries `framebroker submit` needs to split
// a video into frames.
func SubmitRequirements(cfg *config.Config) []Requirement {
	if cfg == nil {
		return nil
	}
	return []Requirement{
		{Name: "FFmpeg", Command: cfg.Codec.FFmpegBinary, Description: "Extracts JPEG frames from the input video"},
		{Name: "FFprobe", Command: cfg.Codec.FFprobeBinary, Description: "Reads frame rate, size, and frame count"},
	}
}

// Missing returns the statuses of required binaries that are unavailable.
func Missing(statuses []Status) []Status {
	var missing []Status
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, status)
		}
	}
	return missing
}
