package model

import "time"

// RunStatus represents the state of an engine run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// StepStatus represents the outcome of one engine step.
type StepStatus string

const (
	StepStatusOK      StepStatus = "ok"
	StepStatusError   StepStatus = "error"
	StepStatusSkipped StepStatus = "skipped"
)

// StepResult records the outcome of a single engine step within a run.
type StepResult struct {
	Name     string     `json:"name"`
	Status   StepStatus `json:"status"`
	RowsIn   int        `json:"rows_in"`
	RowsOut  int        `json:"rows_out"`
	Skipped  int        `json:"skipped_rows,omitempty"`
	Elapsed  int64      `json:"elapsed_ms"`
	Error    string     `json:"error,omitempty"`
}

// RunEntry is one row in the run log.
type RunEntry struct {
	ID          string       `json:"id"`
	Status      RunStatus    `json:"status"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	RowsIn      int          `json:"rows_in"`
	RowsOut     int          `json:"rows_out"`
	Error       string       `json:"error,omitempty"`
	Steps       []StepResult `json:"steps,omitempty"`
}
