package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/3leaps/benchline/pkg/model"
	"github.com/3leaps/benchline/pkg/status"
)

// JobFlag names a boolean column on jobs that lifecycle operations toggle.
type JobFlag string

const (
	FlagPaused      JobFlag = "paused"
	FlagAdminPaused JobFlag = "admin_paused"
	FlagKilled      JobFlag = "killed"
	FlagDeleted     JobFlag = "deleted"
	FlagReadOnly    JobFlag = "read_only"
)

func (f JobFlag) valid() bool {
	switch f {
	case FlagPaused, FlagAdminPaused, FlagKilled, FlagDeleted, FlagReadOnly:
		return true
	}
	return false
}

const jobColumns = `id, name, user_id, primary_space_id, queue_id, seed, disk_size,
	cpu_timeout, wallclock_timeout, max_memory,
	paused, admin_paused, killed, deleted, read_only, build_job, uses_dependencies, high_priority,
	created_at`

// CreateJob inserts a job and its stage attributes. A zero ID is assigned by
// the database.
func (s *Store) CreateJob(ctx context.Context, job model.Job) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	created := job.CreatedAt
	if created.IsZero() {
		created = s.now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		nullInt64(job.ID), job.Name, job.UserID, job.PrimarySpaceID, job.QueueID, job.Seed, job.DiskSize,
		job.CPUTimeout, job.WallclockTimeout, job.MaxMemory,
		boolToInt(job.Paused), boolToInt(job.AdminPaused), boolToInt(job.Killed), boolToInt(job.Deleted),
		boolToInt(job.ReadOnly), boolToInt(job.BuildJob), boolToInt(job.UsesDependencies), boolToInt(job.HighPriority),
		formatTime(created),
	)
	if err != nil {
		return 0, fmt.Errorf("insert job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read job id: %w", err)
	}

	for _, a := range job.StageAttributes {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO job_stage_attrs (job_id, stage_number, pre_processor_id, post_processor_id,
				cpu_timeout, wallclock_timeout, max_memory, bench_suffix, results_interval,
				stdout_save_option, extra_output_save_option)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, id, a.StageNumber, a.PreProcessorID, a.PostProcessorID, a.CPUTimeout, a.WallclockTimeout,
			a.MaxMemory, a.BenchSuffix, a.ResultsInterval, saveOption(a.StdoutSaveOption),
			saveOption(a.ExtraOutputSaveOption)); err != nil {
			return 0, fmt.Errorf("insert stage attributes: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit job: %w", err)
	}
	return id, nil
}

func saveOption(v string) string {
	if v == "" {
		return model.SaveOutput
	}
	return v
}

// GetJob loads a job with its stage attributes, without pairs.
func (s *Store) GetJob(ctx context.Context, jobID int64) (*model.Job, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, jobID)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("job %d: %w", jobID, ErrNotFound)
		}
		return nil, fmt.Errorf("get job: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT stage_number, pre_processor_id, post_processor_id, cpu_timeout, wallclock_timeout,
			max_memory, bench_suffix, results_interval, stdout_save_option, extra_output_save_option
		FROM job_stage_attrs WHERE job_id = ? ORDER BY stage_number
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("query stage attributes: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		a := model.StageAttributes{JobID: jobID}
		if err := rows.Scan(&a.StageNumber, &a.PreProcessorID, &a.PostProcessorID, &a.CPUTimeout,
			&a.WallclockTimeout, &a.MaxMemory, &a.BenchSuffix, &a.ResultsInterval,
			&a.StdoutSaveOption, &a.ExtraOutputSaveOption); err != nil {
			return nil, fmt.Errorf("scan stage attributes: %w", err)
		}
		job.StageAttributes = append(job.StageAttributes, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stage attributes: %w", err)
	}
	return job, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*model.Job, error) {
	var (
		job     model.Job
		created string
	)
	err := row.Scan(&job.ID, &job.Name, &job.UserID, &job.PrimarySpaceID, &job.QueueID, &job.Seed, &job.DiskSize,
		&job.CPUTimeout, &job.WallclockTimeout, &job.MaxMemory,
		&job.Paused, &job.AdminPaused, &job.Killed, &job.Deleted, &job.ReadOnly, &job.BuildJob,
		&job.UsesDependencies, &job.HighPriority, &created)
	if err != nil {
		return nil, err
	}
	job.CreatedAt = parseTime(created)
	return &job, nil
}

// SetJobFlag sets one boolean flag on a job.
func (s *Store) SetJobFlag(ctx context.Context, jobID int64, flag JobFlag, value bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if !flag.valid() {
		return fmt.Errorf("unknown job flag %q", flag)
	}
	// flag is one of the constants above, never caller text.
	res, err := s.db.ExecContext(ctx, `UPDATE jobs SET `+string(flag)+` = ? WHERE id = ?`, boolToInt(value), jobID)
	if err != nil {
		return fmt.Errorf("set job %s: %w", flag, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("job %d: %w", jobID, ErrNotFound)
	}
	return nil
}

// JobPairCounts counts a job's pairs by lifecycle bucket.
func (s *Store) JobPairCounts(ctx context.Context, jobID int64) (model.PairCounts, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var c model.PairCounts
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status_code BETWEEN ? AND ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status_code = ? THEN 1 ELSE 0 END), 0)
		FROM job_pairs WHERE job_id = ?
	`, int(status.PendingSubmit), int(status.Processing), int(status.Processing), jobID).
		Scan(&c.Total, &c.Incomplete, &c.Processing)
	if err != nil {
		return model.PairCounts{}, fmt.Errorf("count job pairs: %w", err)
	}
	return c, nil
}

// JobStatus derives the job's status from its flags, the global pause flag
// and its pairs.
func (s *Store) JobStatus(ctx context.Context, jobID int64) (model.JobStatus, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return "", err
	}
	paused, err := s.GlobalPaused(ctx)
	if err != nil {
		return "", err
	}
	counts, err := s.JobPairCounts(ctx, jobID)
	if err != nil {
		return "", err
	}
	return model.DeriveJobStatus(*job, paused, counts), nil
}

// JobsWithPairsIn returns ids of jobs owning at least one pair in one of the
// given statuses.
func (s *Store) JobsWithPairsIn(ctx context.Context, codes []status.Code) ([]int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(codes) == 0 {
		return nil, nil
	}
	in, args := inClause(codes)
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT job_id FROM job_pairs WHERE status_code IN (`+in+`) ORDER BY job_id
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs by pair status: %w", err)
	}
	return scanIDs(rows)
}

func inClause(codes []status.Code) (string, []any) {
	args := make([]any, 0, len(codes))
	ph := make([]byte, 0, len(codes)*2)
	for i, c := range codes {
		if i > 0 {
			ph = append(ph, ',')
		}
		ph = append(ph, '?')
		args = append(args, int(c))
	}
	return string(ph), args
}

func scanIDs(rows *sql.Rows) ([]int64, error) {
	defer func() { _ = rows.Close() }()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ids: %w", err)
	}
	return out, nil
}
