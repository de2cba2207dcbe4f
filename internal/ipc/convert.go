package ipc

import (
	"framebroker/internal/daemon"
	"framebroker/internal/history"
)

func fromDaemonStatus(status daemon.Status) StatusResponse {
	b := status.Broker
	resp := StatusResponse{
		Running:     status.Running,
		PID:         status.PID,
		Address:     status.Address,
		Format:      b.Format,
		StartedAt:   b.Started,
		LockPath:    status.LockFilePath,
		HistoryPath: status.HistoryPath,
		LogPath:     status.LogPath,
		Queue: QueueStats{
			Pending:  b.Queue.Pending,
			Enqueued: b.Queue.Enqueued,
			Requeued: b.Queue.Requeued,
			Dequeued: b.Queue.Dequeued,
			Purged:   b.Queue.Purged,
		},
		Counters: Counters(b.Counters),
	}
	resp.Workers = make([]WorkerStatus, 0, len(b.Workers))
	for _, w := range b.Workers {
		resp.Workers = append(resp.Workers, WorkerStatus(w))
	}
	resp.Sessions = make([]SessionStatus, 0, len(b.Sessions))
	for _, s := range b.Sessions {
		resp.Sessions = append(resp.Sessions, SessionStatus{
			ID:          s.ID,
			JobID:       s.JobID,
			TotalFrames: s.Meta.TotalFrames,
			FPS:         s.Meta.FPS,
			Width:       s.Meta.Width,
			Height:      s.Meta.Height,
			Submitted:   s.Submitted,
			Completed:   s.Completed,
			Created:     s.Created,
		})
	}
	resp.Dependencies = make([]DependencyStatus, 0, len(status.Dependencies))
	for _, dep := range status.Dependencies {
		resp.Dependencies = append(resp.Dependencies, DependencyStatus(dep))
	}
	return resp
}

func fromRecord(rec history.Record) Job {
	return Job{
		JobID:           rec.JobID,
		SessionID:       rec.SessionID,
		TotalFrames:     rec.TotalFrames,
		FPS:             rec.FPS,
		Width:           rec.Width,
		Height:          rec.Height,
		SubmittedFrames: rec.SubmittedFrames,
		CompletedFrames: rec.CompletedFrames,
		Outcome:         string(rec.Outcome),
		Detail:          rec.Detail,
		Format:          rec.Format,
		ResultBytes:     rec.ResultBytes,
		StartedAt:       rec.StartedAt,
		FinishedAt:      rec.FinishedAt,
	}
}
