// Command framebrokerd runs the broker with the default configuration search
// path. It is the unit-file entry point; `framebroker serve` is equivalent.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"framebroker/internal/brokerrun"
	"framebroker/internal/config"
)

func main() {
	configPath := flag.String("config", "", "Configuration file path")
	logLevel := flag.String("log-level", "", "Override logging.level")
	flag.Parse()

	if err := run(context.Background(), *configPath, *logLevel); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, logLevel string) error {
	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return brokerrun.Run(ctx, cfg, brokerrun.Options{LogLevel: logLevel})
}
