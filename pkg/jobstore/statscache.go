package jobstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/3leaps/benchline/pkg/model"
)

// GetStats returns cached rows for one job space and stage. Stage -1 returns
// every stage.
func (s *Store) GetStats(ctx context.Context, jobSpaceID int64, stageNumber int) ([]model.SolverStats, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT job_space_id, stage_number, config_id, config_name, solver_id, solver_name,
			complete, correct, incorrect, unknown, failed, resource_out, incomplete,
			wallclock, cpu, conflicts
		FROM job_stats
		WHERE job_space_id = ? AND (? < 0 OR stage_number = ?)
		ORDER BY stage_number, config_id
	`, jobSpaceID, stageNumber, stageNumber)
	if err != nil {
		return nil, fmt.Errorf("query job stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.SolverStats
	for rows.Next() {
		var st model.SolverStats
		if err := rows.Scan(&st.JobSpaceID, &st.StageNumber, &st.ConfigurationID, &st.ConfigurationName,
			&st.SolverID, &st.SolverName, &st.CompleteJobPairs, &st.CorrectJobPairs, &st.IncorrectJobPairs,
			&st.UnknownJobPairs, &st.FailedJobPairs, &st.ResourceOutJobPairs, &st.IncompleteJobPairs,
			&st.WallTime, &st.CPUTime, &st.Conflicts); err != nil {
			return nil, fmt.Errorf("scan job stats: %w", err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job stats: %w", err)
	}
	return out, nil
}

// PutStats replaces cached rows for the given keys in one transaction.
func (s *Store) PutStats(ctx context.Context, jobID int64, stats []model.SolverStats) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(stats) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO job_stats (job_id, job_space_id, stage_number, config_id, config_name, solver_id, solver_name,
			complete, correct, incorrect, unknown, failed, resource_out, incomplete, wallclock, cpu, conflicts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_space_id, stage_number, config_id) DO UPDATE SET
			job_id = excluded.job_id,
			config_name = excluded.config_name,
			solver_id = excluded.solver_id,
			solver_name = excluded.solver_name,
			complete = excluded.complete,
			correct = excluded.correct,
			incorrect = excluded.incorrect,
			unknown = excluded.unknown,
			failed = excluded.failed,
			resource_out = excluded.resource_out,
			incomplete = excluded.incomplete,
			wallclock = excluded.wallclock,
			cpu = excluded.cpu,
			conflicts = excluded.conflicts
	`)
	if err != nil {
		return fmt.Errorf("prepare job stats: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, st := range stats {
		if _, err := stmt.ExecContext(ctx, jobID, st.JobSpaceID, st.StageNumber, st.ConfigurationID,
			st.ConfigurationName, st.SolverID, st.SolverName, st.CompleteJobPairs, st.CorrectJobPairs,
			st.IncorrectJobPairs, st.UnknownJobPairs, st.FailedJobPairs, st.ResourceOutJobPairs,
			st.IncompleteJobPairs, st.WallTime, st.CPUTime, st.Conflicts); err != nil {
			return fmt.Errorf("insert job stats: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit job stats: %w", err)
	}
	return nil
}

// DeleteStats removes cached rows for the given spaces. When configIDs is
// non-empty only those configurations are removed.
func (s *Store) DeleteStats(ctx context.Context, spaceIDs []int64, configIDs []int64) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(spaceIDs) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(spaceIDs)+len(configIDs))
	for _, id := range spaceIDs {
		args = append(args, id)
	}
	q := `DELETE FROM job_stats WHERE job_space_id IN (` + placeholders(len(spaceIDs)) + `)`
	if len(configIDs) > 0 {
		q += ` AND config_id IN (` + placeholders(len(configIDs)) + `)`
		for _, id := range configIDs {
			args = append(args, id)
		}
	}
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("delete job stats: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
