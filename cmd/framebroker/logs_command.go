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

	"framebroker/internal/logs"
)

const followWait = 2 * time.Second

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var raw bool
	var filter logs.Filter
	var level string
	var file string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the broker log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := strings.TrimSpace(file)
			if path == "" {
				path = filepath.Join(cfg.Paths.LogDir, "framebroker.log")
			}
			if level != "" {
				filter = filter.AtLeast(logs.ParseLevel(level))
			}
			return streamLogs(cmd.Context(), cmd.OutOrStdout(), path, logs.TailOptions{
				Offset: -1,
				Limit:  lines,
				Filter: filter,
			}, follow, raw)
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print JSON lines unchanged")
	cmd.Flags().StringVar(&filter.Component, "component", "", "Only show one component (daemon, producer, worker, ...)")
	cmd.Flags().StringVar(&filter.SessionID, "session", "", "Only show one producer session")
	cmd.Flags().StringVar(&filter.JobID, "job", "", "Only show one job (prefix match)")
	cmd.Flags().StringVar(&level, "level", "", "Minimum level (debug, info, warn, error)")
	cmd.Flags().StringVar(&file, "file", "", "Log file to read (default <log_dir>/framebroker.log)")
	return cmd
}

func streamLogs(ctx context.Context, out io.Writer, path string, opts logs.TailOptions, follow, raw bool) error {
	for {
		result, err := logs.Tail(ctx, path, opts)
		if err != nil {
			if follow && errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		for _, line := range result.Lines {
			fmt.Fprintln(out, renderLogLine(line, raw))
		}
		if !follow {
			return nil
		}
		opts.Offset = result.Offset
		opts.Follow = true
		opts.Wait = followWait
		if ctx.Err() != nil {
			return nil
		}
	}
}

func renderLogLine(line string, raw bool) string {
	if raw {
		return line
	}
	entry, ok := logs.ParseEntry(line)
	if !ok {
		return line
	}
	return logs.Format(entry)
}
