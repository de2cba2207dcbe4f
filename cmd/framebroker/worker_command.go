package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"framebroker/internal/config"
	"framebroker/internal/node"
)

func newWorkerCommand(ctx *commandContext) *cobra.Command {
	var address string
	var quality int
	var once bool
	var logLevel string

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Connect a frame-processing worker to the broker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.clientLogger(logLevel)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			opts := workerOptions(cfg, address, quality, once)
			opts.Logger = logger

			runCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			worker := node.New(opts)
			err = worker.Run(runCtx)
			fmt.Fprintf(cmd.OutOrStdout(), "Processed %d frames (%d passed through unchanged)\n",
				worker.Processed(), worker.Passthrough())
			return err
		},
	}
	cmd.Flags().StringVar(&address, "broker", "", "Broker host:port (default worker.broker_address)")
	cmd.Flags().IntVar(&quality, "quality", 0, "JPEG quality of processed frames (default worker.jpeg_quality)")
	cmd.Flags().BoolVar(&once, "once", false, "Exit when the broker closes the connection instead of reconnecting")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level")
	return cmd
}

func workerOptions(cfg *config.Config, address string, quality int, once bool) node.Options {
	opts := node.Options{
		Address:        cfg.Worker.BrokerAddress,
		Quality:        cfg.Worker.JPEGQuality,
		ReconnectDelay: cfg.ReconnectDelay(),
		MaxPayload:     cfg.MaxPayload(),
	}
	if addr := strings.TrimSpace(address); addr != "" {
		opts.Address = addr
	}
	if quality > 0 {
		opts.Quality = quality
	}
	if once {
		opts.ReconnectDelay = 0
	}
	return opts
}
