package history

import "time"

// Outcome is how a session ended.
type Outcome string

const (
	// OutcomeDelivered means the producer received a ready status and blob.
	OutcomeDelivered Outcome = "delivered"
	// OutcomeFailed means reassembly failed and an error status was sent.
	OutcomeFailed Outcome = "failed"
	// OutcomeAbandoned means the producer disconnected or broke protocol
	// before delivery.
	OutcomeAbandoned Outcome = "abandoned"
)

// Record is one finished job.
type Record struct {
	JobID           string
	SessionID       string
	TotalFrames     int
	FPS             float64
	Width           int
	Height          int
	SubmittedFrames int
	CompletedFrames int
	Outcome         Outcome
	Detail          string
	Format          string
	ResultBytes     int64
	StartedAt       time.Time
	FinishedAt      time.Time
}

// Duration returns how long the session was open.
func (r Record) Duration() time.Duration {
	if r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Counts tallies records by outcome.
type Counts struct {
	Delivered int
	Failed    int
	Abandoned int
}

// Total returns the number of recorded jobs.
func (c Counts) Total() int {
	return c.Delivered + c.Failed + c.Abandoned
}
