package main

import (
	"github.com/spf13/cobra"

	"framebroker/internal/brokerrun"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var diagnostic bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the broker in the foreground",
		Long: "Run the broker in the foreground. Workers and producers connect to the\n" +
			"configured TCP port; `framebroker status` reads the admin socket.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return brokerrun.Run(cmd.Context(), cfg, brokerrun.Options{
				LogLevel:    logLevel,
				Development: diagnostic,
			})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level")
	cmd.Flags().BoolVar(&diagnostic, "diagnostic", false, "Enable debug logging with source locations")
	return cmd
}
