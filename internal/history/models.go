package history

import "time"

// AttemptState is the lifecycle of one assembly attempt.
type AttemptState string

const (
	AttemptRunning   AttemptState = "running"
	AttemptCompleted AttemptState = "completed"
	AttemptFailed    AttemptState = "failed"
)

// InterruptedReason is recorded on attempts still running when the daemon
// last stopped.
const InterruptedReason = "daemon stopped during assembly"

// Project is the ledger view of a registered project.
type Project struct {
	ID            string
	CreatedAt     time.Time
	SceneCount    int
	RequiredCount int
	TotalSeconds  float64
	State         string
}

// Outcome finalizes an attempt.
type Outcome struct {
	State        AttemptState
	OutputPath   string
	OutputBytes  int64
	ErrorKind    string
	ErrorMessage string
	Diagnostics  string
	Elapsed      time.Duration
}

// Attempt is one recorded assembly.
type Attempt struct {
	ID           int64
	ProjectID    string
	StartedAt    time.Time
	FinishedAt   *time.Time
	State        AttemptState
	OutputPath   string
	OutputBytes  int64
	ErrorKind    string
	ErrorMessage string
	Diagnostics  string
	Elapsed      time.Duration
}

// Summary aggregates ledger counts.
type Summary struct {
	Projects  int
	Attempts  int
	Running   int
	Completed int
	Failed    int
}
