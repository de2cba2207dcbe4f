package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"framebroker/internal/ipc"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show broker workers, sessions, and counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Status()
				if err != nil {
					return fmt.Errorf("fetch status: %w", err)
				}
				if jsonOutput {
					return writeJSON(cmd, resp)
				}
				stdout := cmd.OutOrStdout()
				printStatus(stdout, resp, shouldColorize(stdout), time.Now())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the raw status as JSON")
	return cmd
}

func printStatus(out io.Writer, resp *ipc.StatusResponse, colorize bool, now time.Time) {
	for _, line := range renderSectionHeader("Broker", colorize) {
		fmt.Fprintln(out, line)
	}
	if resp.Running {
		fmt.Fprintln(out, renderStatusLine("State", statusOK, "Running", colorize))
	} else {
		fmt.Fprintln(out, renderStatusLine("State", statusWarn, "Stopped", colorize))
	}
	fmt.Fprintln(out, renderValueLine("Address", resp.Address))
	fmt.Fprintln(out, renderValueLine("PID", strconv.Itoa(resp.PID)))
	fmt.Fprintln(out, renderValueLine("Format", resp.Format))
	if !resp.StartedAt.IsZero() {
		fmt.Fprintln(out, renderValueLine("Uptime", now.Sub(resp.StartedAt).Round(time.Second).String()))
	}
	fmt.Fprintln(out, renderValueLine("History", yesNo(resp.HistoryPath != "")))
	if resp.LogPath != "" {
		fmt.Fprintln(out, renderValueLine("Log", resp.LogPath))
	}
	fmt.Fprintln(out)

	for _, line := range renderSectionHeader("Dependencies", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, line := range dependencyLines(resp.Dependencies, colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out)

	for _, line := range renderSectionHeader("Queue", colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprint(out, renderTable(
		[]string{"Pending", "Enqueued", "Requeued", "Dequeued", "Purged"},
		[][]string{{
			strconv.Itoa(resp.Queue.Pending),
			strconv.FormatUint(resp.Queue.Enqueued, 10),
			strconv.FormatUint(resp.Queue.Requeued, 10),
			strconv.FormatUint(resp.Queue.Dequeued, 10),
			strconv.FormatUint(resp.Queue.Purged, 10),
		}},
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight},
	))
	fmt.Fprintln(out)

	for _, line := range renderSectionHeader("Workers", colorize) {
		fmt.Fprintln(out, line)
	}
	if len(resp.Workers) == 0 {
		fmt.Fprintln(out, "No workers connected")
	} else {
		fmt.Fprint(out, renderTable(
			[]string{"Worker", "State", "Session", "Frame", "Completed", "Connected"},
			workerRows(resp.Workers, colorize, now),
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight},
		))
	}
	fmt.Fprintln(out)

	for _, line := range renderSectionHeader("Sessions", colorize) {
		fmt.Fprintln(out, line)
	}
	if len(resp.Sessions) == 0 {
		fmt.Fprintln(out, "No open sessions")
	} else {
		fmt.Fprint(out, renderTable(
			[]string{"Session", "Job", "Frames", "Submitted", "Completed", "Geometry", "Age"},
			sessionRows(resp.Sessions, now),
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft, alignRight},
		))
	}
	fmt.Fprintln(out)

	for _, line := range renderSectionHeader("Counters", colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprint(out, renderTable([]string{"Counter", "Value"}, counterRows(resp.Counters), []columnAlignment{alignLeft, alignRight}))
}

func workerRows(workers []ipc.WorkerStatus, colorize bool, now time.Time) [][]string {
	rows := make([][]string, 0, len(workers))
	for _, w := range workers {
		session, frame := "-", "-"
		if w.SessionID != "" {
			session = w.SessionID
			frame = strconv.FormatUint(uint64(w.Index), 10)
		}
		rows = append(rows, []string{
			w.ID,
			colorState(stateLabel(w.State), workerStateKind(w.State), colorize),
			session,
			frame,
			strconv.Itoa(w.Completed),
			now.Sub(w.Connected).Round(time.Second).String(),
		})
	}
	return rows
}

func workerStateKind(state string) statusKind {
	switch state {
	case "idle":
		return statusInfo
	case "dispatching", "awaiting_result":
		return statusOK
	default:
		return statusWarn
	}
}

func sessionRows(sessions []ipc.SessionStatus, now time.Time) [][]string {
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, []string{
			s.ID,
			shortID(s.JobID),
			strconv.Itoa(s.TotalFrames),
			strconv.Itoa(s.Submitted),
			strconv.Itoa(s.Completed),
			fmt.Sprintf("%dx%d @ %s", s.Width, s.Height, strconv.FormatFloat(s.FPS, 'f', -1, 64)),
			now.Sub(s.Created).Round(time.Second).String(),
		})
	}
	return rows
}

func counterRows(c ipc.Counters) [][]string {
	pairs := []struct {
		label string
		value uint64
	}{
		{"Producers", c.Producers},
		{"Workers", c.Workers},
		{"Rejected", c.Rejected},
		{"Frames completed", c.FramesCompleted},
		{"Orphaned results", c.Orphaned},
		{"Requeued frames", c.Requeued},
		{"Delivered", c.Delivered},
		{"Failed", c.Failed},
		{"Abandoned", c.Abandoned},
	}
	rows := make([][]string, 0, len(pairs))
	for _, p := range pairs {
		rows = append(rows, []string{p.label, strconv.FormatUint(p.value, 10)})
	}
	return rows
}

func dependencyLines(deps []ipc.DependencyStatus, colorize bool) []string {
	if len(deps) == 0 {
		return []string{renderStatusLine("Codec", statusOK, "No external binaries required", colorize)}
	}
	lines := make([]string, 0, len(deps)+1)
	missing := make([]string, 0)
	for _, dep := range deps {
		if dep.Available {
			message := "Ready"
			if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}
		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
		missing = append(missing, dep.Name)
	}
	if len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing", statusWarn, strings.Join(missing, ", ")+" (reassembly will fail)", colorize))
	}
	return lines
}
