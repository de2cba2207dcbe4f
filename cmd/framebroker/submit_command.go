package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"framebroker/internal/config"
	"framebroker/internal/deps"
	"framebroker/internal/faults"
	"framebroker/internal/fileutil"
	"framebroker/internal/media/split"
	"framebroker/internal/producer"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var output string
	var address string
	var quality int
	var timeout time.Duration
	var logLevel string

	cmd := &cobra.Command{
		Use:   "submit INPUT",
		Short: "Split a video into frames, process them through the broker, and write the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.clientLogger(logLevel)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			input, err := config.ExpandPath(strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			target := strings.TrimSpace(output)
			if target == "" {
				target = defaultOutputPath(input, cfg.Codec.Format)
			}
			if target, err = config.ExpandPath(target); err != nil {
				return err
			}

			if missing := deps.Missing(deps.CheckBinaries(deps.SubmitRequirements(cfg))); len(missing) > 0 {
				return faults.Wrap(faults.ErrConfiguration, "submit", "preflight",
					fmt.Sprintf("%s: %s", missing[0].Name, missing[0].Detail), nil)
			}

			runCtx := cmd.Context()
			if timeout <= 0 {
				timeout = cfg.ProducerTimeout()
			}
			if timeout > 0 {
				var cancel context.CancelFunc
				runCtx, cancel = context.WithTimeout(runCtx, timeout)
				defer cancel()
			}

			stdout := cmd.OutOrStdout()
			fmt.Fprintf(stdout, "Extracting frames from %s\n", input)
			extraction, err := split.Extract(runCtx, input, split.Options{
				FFmpegBinary:  cfg.Codec.FFmpegBinary,
				FFprobeBinary: cfg.Codec.FFprobeBinary,
				WorkDir:       cfg.Codec.WorkDir,
				Quality:       submitQuality(cfg, quality),
			})
			if err != nil {
				return fmt.Errorf("extract frames: %w", err)
			}
			defer extraction.Cleanup()

			meta := extraction.Meta
			fmt.Fprintf(stdout, "Submitting %d frames (%dx%d @ %.3f fps)\n", meta.TotalFrames, meta.Width, meta.Height, meta.FPS)

			brokerAddr := cfg.Producer.BrokerAddress
			if addr := strings.TrimSpace(address); addr != "" {
				brokerAddr = addr
			}
			client := producer.NewClient(producer.Options{Address: brokerAddr, Logger: logger})
			started := time.Now()
			blob, err := client.Submit(runCtx, meta, extraction, progressPrinter(cmd.ErrOrStderr(), shouldColorize(cmd.ErrOrStderr())))
			if err != nil {
				return submitError(err)
			}

			if err := fileutil.WriteAtomic(target, blob, 0o644); err != nil {
				return fmt.Errorf("write result: %w", err)
			}
			fmt.Fprintf(stdout, "Wrote %s (%d bytes, sha256 %s) in %s\n",
				target, len(blob), fileutil.Checksum(blob), time.Since(started).Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Result path (default INPUT stem with the codec extension)")
	cmd.Flags().StringVar(&address, "broker", "", "Broker host:port (default producer.broker_address)")
	cmd.Flags().IntVar(&quality, "quality", 0, "JPEG quality of extracted frames (default producer.jpeg_quality)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Overall deadline (default producer.timeout_seconds)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level")
	return cmd
}

func submitQuality(cfg *config.Config, override int) int {
	if override > 0 {
		return override
	}
	return cfg.Producer.JPEGQuality
}

// defaultOutputPath places the result beside the input with a suffix that
// keeps it from overwriting the source.
func defaultOutputPath(input, format string) string {
	ext := ".mp4"
	switch format {
	case "mjpeg":
		ext = ".mjpeg"
	case "av1":
		ext = ".av1.mkv"
	}
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(filepath.Dir(input), stem+".processed"+ext)
}

func submitError(err error) error {
	switch {
	case errors.Is(err, faults.ErrRemote):
		return fmt.Errorf("broker reported failure: %w", err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("submit timed out: %w", err)
	case errors.Is(err, faults.ErrTransport):
		return fmt.Errorf("broker connection failed: %w", err)
	default:
		return err
	}
}

// progressPrinter rewrites one line on terminals and prints every tenth of
// the job otherwise.
func progressPrinter(w io.Writer, terminal bool) producer.Progress {
	lastDecile := -1
	return func(sent, total int) {
		if total <= 0 {
			return
		}
		if terminal {
			fmt.Fprintf(w, "\rSent %d/%d frames", sent, total)
			if sent == total {
				fmt.Fprintln(w)
			}
			return
		}
		decile := sent * 10 / total
		if decile == lastDecile && sent != total {
			return
		}
		lastDecile = decile
		fmt.Fprintf(w, "Sent %d/%d frames\n", sent, total)
	}
}

var _ producer.FrameSource = (*split.Extraction)(nil)
