// Package model holds the in-memory records for jobs, job pairs, pipeline
// stages and per-solver statistics.
//
// Records are plain structs. Solver, configuration, benchmark and worker node
// records are interned in an Arena per query, and stages point at the
// interned record instead of carrying their own copy.
package model

import "time"

// Job is a batch of job pairs submitted together.
type Job struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	UserID         int64     `json:"user_id"`
	PrimarySpaceID int64     `json:"primary_space_id"`
	QueueID        int64     `json:"queue_id"`
	Seed           int64     `json:"seed"`
	DiskSize       int64     `json:"disk_size"`
	CreatedAt      time.Time `json:"created_at"`

	// Limits applied to stages without their own StageAttributes.
	CPUTimeout       int   `json:"cpu_timeout"`
	WallclockTimeout int   `json:"wallclock_timeout"`
	MaxMemory        int64 `json:"max_memory"`

	Paused           bool `json:"paused"`
	AdminPaused      bool `json:"admin_paused"`
	Killed           bool `json:"killed"`
	Deleted          bool `json:"deleted"`
	ReadOnly         bool `json:"read_only"`
	BuildJob         bool `json:"build_job"`
	UsesDependencies bool `json:"uses_dependencies"`
	HighPriority     bool `json:"high_priority"`

	StageAttributes []StageAttributes `json:"stage_attributes,omitempty"`
	Pairs           []JobPair         `json:"pairs,omitempty"`
}

// JobStatus is the derived, never persisted, state of a job.
type JobStatus string

const (
	JobStatusRunning     JobStatus = "running"
	JobStatusProcessing  JobStatus = "processing"
	JobStatusComplete    JobStatus = "complete"
	JobStatusPaused      JobStatus = "paused"
	JobStatusAdminPaused JobStatus = "admin_paused"
	JobStatusGlobalPause JobStatus = "global_pause"
	JobStatusKilled      JobStatus = "killed"
	JobStatusDeleted     JobStatus = "deleted"
)

// PairCounts summarizes a job's pairs by status for job status derivation.
type PairCounts struct {
	Incomplete int
	Processing int
	Total      int
}

// DeriveJobStatus computes a job's status from its flags, the global pause
// flag and its pair counts. Flags win over pair state.
func DeriveJobStatus(job Job, globalPaused bool, counts PairCounts) JobStatus {
	switch {
	case job.Deleted:
		return JobStatusDeleted
	case job.Killed:
		return JobStatusKilled
	case job.AdminPaused:
		return JobStatusAdminPaused
	case job.Paused:
		return JobStatusPaused
	}
	if counts.Incomplete > counts.Processing {
		if globalPaused {
			return JobStatusGlobalPause
		}
		return JobStatusRunning
	}
	if counts.Processing > 0 {
		return JobStatusProcessing
	}
	return JobStatusComplete
}

// StageAttributes holds per-stage execution settings of a job.
type StageAttributes struct {
	JobID                 int64  `json:"job_id" yaml:"-"`
	StageNumber           int    `json:"stage_number" yaml:"stage"`
	PreProcessorID        int64  `json:"pre_processor_id,omitempty" yaml:"pre_processor_id,omitempty"`
	PostProcessorID       int64  `json:"post_processor_id,omitempty" yaml:"post_processor_id,omitempty"`
	CPUTimeout            int    `json:"cpu_timeout" yaml:"cpu_timeout"`
	WallclockTimeout      int    `json:"wallclock_timeout" yaml:"wallclock_timeout"`
	MaxMemory             int64  `json:"max_memory" yaml:"max_memory"`
	BenchSuffix           string `json:"bench_suffix,omitempty" yaml:"bench_suffix,omitempty"`
	ResultsInterval       int    `json:"results_interval" yaml:"results_interval"`
	StdoutSaveOption      string `json:"stdout_save_option" yaml:"stdout_save_option"`
	ExtraOutputSaveOption string `json:"extra_output_save_option" yaml:"extra_output_save_option"`
}

// Save options for stage output.
const (
	SaveOutput     = "save"
	NoSaveOutput   = "no_save"
	CreateNoOutput = "create_no"
)
