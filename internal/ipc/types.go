package ipc

import "time"

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// QueueStats mirrors dispatch queue counters.
type QueueStats struct {
	Pending  int    `json:"pending"`
	Enqueued uint64 `json:"enqueued"`
	Requeued uint64 `json:"requeued"`
	Dequeued uint64 `json:"dequeued"`
	Purged   uint64 `json:"purged"`
}

// WorkerStatus describes one connected worker.
type WorkerStatus struct {
	ID        string    `json:"id"`
	State     string    `json:"state"`
	SessionID string    `json:"session_id,omitempty"`
	Index     uint32    `json:"frame_index"`
	Completed int       `json:"completed"`
	Connected time.Time `json:"connected"`
	Since     time.Time `json:"since"`
}

// SessionStatus describes one open producer session.
type SessionStatus struct {
	ID          string    `json:"id"`
	JobID       string    `json:"job_id"`
	TotalFrames int       `json:"total_frames"`
	FPS         float64   `json:"fps"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	Submitted   int       `json:"submitted"`
	Completed   int       `json:"completed"`
	Created     time.Time `json:"created"`
}

// Counters mirrors cumulative broker counters.
type Counters struct {
	Producers       uint64 `json:"producers"`
	Workers         uint64 `json:"workers"`
	Rejected        uint64 `json:"rejected"`
	FramesCompleted uint64 `json:"frames_completed"`
	Orphaned        uint64 `json:"orphaned"`
	Requeued        uint64 `json:"requeued"`
	Delivered       uint64 `json:"delivered"`
	Failed          uint64 `json:"failed"`
	Abandoned       uint64 `json:"abandoned"`
}

// DependencyStatus describes availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail"`
}

// StatusResponse represents combined daemon and broker status.
type StatusResponse struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	Address      string             `json:"address"`
	Format       string             `json:"format"`
	StartedAt    time.Time          `json:"started_at"`
	LockPath     string             `json:"lock_path"`
	HistoryPath  string             `json:"history_path"`
	LogPath      string             `json:"log_path"`
	Queue        QueueStats         `json:"queue"`
	Workers      []WorkerStatus     `json:"workers"`
	Sessions     []SessionStatus    `json:"sessions"`
	Counters     Counters           `json:"counters"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// HistoryRequest asks for recent finished jobs.
type HistoryRequest struct {
	Limit int `json:"limit"`
}

// Job is one finished session from the history ledger.
type Job struct {
	JobID           string    `json:"job_id"`
	SessionID       string    `json:"session_id"`
	TotalFrames     int       `json:"total_frames"`
	FPS             float64   `json:"fps"`
	Width           int       `json:"width"`
	Height          int       `json:"height"`
	SubmittedFrames int       `json:"submitted_frames"`
	CompletedFrames int       `json:"completed_frames"`
	Outcome         string    `json:"outcome"`
	Detail          string    `json:"detail,omitempty"`
	Format          string    `json:"format"`
	ResultBytes     int64     `json:"result_bytes"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
}

// HistoryCounts tallies jobs by outcome.
type HistoryCounts struct {
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
	Abandoned int `json:"abandoned"`
}

// HistoryResponse contains recent jobs, newest first.
type HistoryResponse struct {
	Jobs   []Job         `json:"jobs"`
	Counts HistoryCounts `json:"counts"`
}
