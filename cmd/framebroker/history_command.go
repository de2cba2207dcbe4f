package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"framebroker/internal/ipc"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently finished jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return fmt.Errorf("--limit must be non-negative")
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.History(limit)
				if err != nil {
					return fmt.Errorf("fetch history: %w", err)
				}
				if jsonOutput {
					return writeJSON(cmd, resp)
				}
				stdout := cmd.OutOrStdout()
				printHistory(stdout, resp, shouldColorize(stdout))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Number of jobs to show (default 20)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print jobs as JSON")
	return cmd
}

func printHistory(out io.Writer, resp *ipc.HistoryResponse, colorize bool) {
	if len(resp.Jobs) == 0 {
		fmt.Fprintln(out, "No finished jobs")
	} else {
		rows := make([][]string, 0, len(resp.Jobs))
		for _, job := range resp.Jobs {
			rows = append(rows, []string{
				job.FinishedAt.Local().Format("2006-01-02 15:04:05"),
				shortID(job.JobID),
				job.SessionID,
				colorState(stateLabel(job.Outcome), outcomeKind(job.Outcome), colorize),
				fmt.Sprintf("%d/%d", job.CompletedFrames, job.TotalFrames),
				job.Format,
				strconv.FormatInt(job.ResultBytes, 10),
				job.FinishedAt.Sub(job.StartedAt).Round(time.Millisecond).String(),
				job.Detail,
			})
		}
		fmt.Fprint(out, renderTable(
			[]string{"Finished", "Job", "Producer", "Outcome", "Frames", "Format", "Bytes", "Duration", "Detail"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignRight, alignLeft},
		))
	}
	c := resp.Counts
	fmt.Fprintf(out, "Delivered: %d  Failed: %d  Abandoned: %d\n", c.Delivered, c.Failed, c.Abandoned)
}

func outcomeKind(outcome string) statusKind {
	switch outcome {
	case "delivered":
		return statusOK
	case "failed":
		return statusError
	default:
		return statusWarn
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
