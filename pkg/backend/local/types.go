package local

import "time"

// ExecState is the lifecycle state of one local execution.
//
// NOTE: These values are persisted in exec.json.
type ExecState string

const (
	ExecStateRunning ExecState = "running"
	ExecStateStopped ExecState = "stopped"
	ExecStateSuccess ExecState = "success"
	ExecStateFailed  ExecState = "failed"
	ExecStateUnknown ExecState = "unknown"
)

// ExecRecord is the persistent record written to exec.json.
type ExecRecord struct {
	ExecID    string    `json:"exec_id"`
	PairID    int64     `json:"pair_id"`
	Queue     string    `json:"queue"`
	State     ExecState `json:"state"`
	Command   []string  `json:"command"`
	PID       int       `json:"pid,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	EndedAt    *time.Time `json:"ended_at,omitempty"`
	ExitCode   *int       `json:"exit_code,omitempty"`
	StdoutPath string     `json:"stdout_path,omitempty"`
	StderrPath string     `json:"stderr_path,omitempty"`
}
