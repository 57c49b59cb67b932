package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/3leaps/benchline/pkg/model"
	"github.com/3leaps/benchline/pkg/status"
)

// PairState is the small slice of a pair that lifecycle decisions need.
type PairState struct {
	ID         int64
	JobID      int64
	JobSpaceID int64
	Status     status.Code
	ExecID     string
	SolverID   int64
}

// CreatePair inserts a pair with its stages, inputs, reported results and
// per-stage dependency rows (taken from each stage's Dependencies).
func (s *Store) CreatePair(ctx context.Context, p model.JobPair) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !p.Status.Valid() {
		p.Status = status.PendingSubmit
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var benchID, nodeID int64
	if p.Benchmark != nil {
		benchID = p.Benchmark.ID
	}
	if p.Node != nil {
		nodeID = p.Node.ID
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO job_pairs (id, job_id, job_space_id, bench_id, node_id, pipeline_id,
			primary_stage_number, status_code, exec_id, disk_size, rerun_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, nullInt64(p.ID), p.JobID, p.JobSpaceID, benchID, nullInt64(nodeID), nullInt64(p.PipelineID),
		p.PrimaryStageNumber, int(p.Status), nullString(p.ExecID), p.DiskSize, p.RerunCount)
	if err != nil {
		return 0, fmt.Errorf("insert job pair: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read job pair id: %w", err)
	}

	for i, in := range p.Inputs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO jobpair_inputs (pair_id, input_number, bench_id) VALUES (?, ?, ?)`,
			id, i+1, in); err != nil {
			return 0, fmt.Errorf("insert job pair input: %w", err)
		}
	}

	for _, st := range p.Stages {
		var solverID, configID int64
		if st.Solver != nil {
			solverID = st.Solver.ID
		}
		if st.Configuration != nil {
			configID = st.Configuration.ID
		}
		code := st.Status
		if !code.Valid() {
			code = p.Status
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO jobpair_stage_data (pair_id, stage_id, stage_number, solver_id, config_id,
				status_code, wallclock, cpu, disk_size)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, id, st.StageID, st.StageNumber, nullInt64(solverID), nullInt64(configID), int(code),
			st.Wallclock, st.CPU, st.DiskSize); err != nil {
			return 0, fmt.Errorf("insert stage data: %w", err)
		}
		if st.Outcome.Actual != nil {
			if err := setPairAttribute(ctx, tx, id, st.StageNumber, model.ResultAttribute, *st.Outcome.Actual); err != nil {
				return 0, err
			}
		}
		for _, d := range st.Dependencies {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO jobpair_dependencies (pair_id, stage_id, dependency_type, input_number)
				VALUES (?, ?, ?, ?)
			`, id, st.StageID, string(d.Kind), d.InputNumber); err != nil {
				return 0, fmt.Errorf("insert pair dependency: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit job pair: %w", err)
	}
	return id, nil
}

// AddPairDependency inserts one dependency row for an existing pair.
func (s *Store) AddPairDependency(ctx context.Context, pairID int64, d model.PipelineDependency) error {
	if ctx == nil {
		ctx = context.Background()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobpair_dependencies (pair_id, stage_id, dependency_type, input_number) VALUES (?, ?, ?, ?)
	`, pairID, d.StageID, string(d.Kind), d.InputNumber)
	if err != nil {
		return fmt.Errorf("insert pair dependency: %w", err)
	}
	return nil
}

func setPairAttribute(ctx context.Context, tx *sql.Tx, pairID int64, stage int, key, value string) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO pair_attributes (pair_id, stage_number, attr_key, attr_value) VALUES (?, ?, ?, ?)
		ON CONFLICT(pair_id, stage_number, attr_key) DO UPDATE SET attr_value = excluded.attr_value
	`, pairID, stage, key, value); err != nil {
		return fmt.Errorf("set pair attribute: %w", err)
	}
	return nil
}

// GetPairState loads the pair's status, execution id and primary solver.
func (s *Store) GetPairState(ctx context.Context, pairID int64) (*PairState, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var (
		ps     PairState
		code   int
		execID sql.NullString
		solver sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT p.id, p.job_id, p.job_space_id, p.status_code, p.exec_id, sd.solver_id
		FROM job_pairs p
		LEFT JOIN jobpair_stage_data sd ON sd.pair_id = p.id AND sd.stage_number = p.primary_stage_number
		WHERE p.id = ?
	`, pairID).Scan(&ps.ID, &ps.JobID, &ps.JobSpaceID, &code, &execID, &solver)
	if err != nil {
		return nil, notFoundOr(err, fmt.Sprintf("job pair %d", pairID), "get job pair state")
	}
	ps.Status = status.Code(code)
	ps.ExecID = execID.String
	ps.SolverID = solver.Int64
	return &ps, nil
}

// PairFilter selects pairs of one job.
type PairFilter struct {
	JobID    int64
	Statuses []status.Code
	// ExcludeStatuses drops pairs in these statuses.
	ExcludeStatuses []status.Code
}

// ListPairStates returns pair states of a job, ordered by pair id.
func (s *Store) ListPairStates(ctx context.Context, f PairFilter) ([]PairState, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	where := []string{"p.job_id = ?"}
	args := []any{f.JobID}
	if len(f.Statuses) > 0 {
		in, a := inClause(f.Statuses)
		where = append(where, "p.status_code IN ("+in+")")
		args = append(args, a...)
	}
	if len(f.ExcludeStatuses) > 0 {
		in, a := inClause(f.ExcludeStatuses)
		where = append(where, "p.status_code NOT IN ("+in+")")
		args = append(args, a...)
	}
	return s.queryPairStates(ctx, strings.Join(where, " AND "), args...)
}

// ActivePairs returns every pair the backend should be holding: status on
// the backend and an execution id assigned.
func (s *Store) ActivePairs(ctx context.Context) ([]PairState, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var codes []status.Code
	for _, c := range status.All() {
		if c.OnBackend() {
			codes = append(codes, c)
		}
	}
	in, args := inClause(codes)
	return s.queryPairStates(ctx, "p.status_code IN ("+in+") AND COALESCE(p.exec_id, '') <> ''", args...)
}

// TimelessPairStates returns terminal pairs of a job whose stages recorded
// no wallclock time at all.
func (s *Store) TimelessPairStates(ctx context.Context, jobID int64) ([]PairState, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.queryPairStates(ctx, `p.job_id = ?
		AND p.status_code BETWEEN ? AND ?
		AND COALESCE((SELECT SUM(wallclock) FROM jobpair_stage_data sd2 WHERE sd2.pair_id = p.id), 0) = 0`,
		jobID, int(status.Complete), int(status.Unknown))
}

// RerunCandidates returns pairs in one of the given statuses, below the
// rerun limit, whose jobs are not read-only, killed or deleted.
func (s *Store) RerunCandidates(ctx context.Context, codes []status.Code, maxReruns int) ([]PairState, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(codes) == 0 {
		return nil, nil
	}
	in, args := inClause(codes)
	args = append(args, maxReruns)
	return s.queryPairStates(ctx, `p.status_code IN (`+in+`)
		AND p.rerun_count < ?
		AND EXISTS (SELECT 1 FROM jobs j WHERE j.id = p.job_id
			AND j.read_only = 0 AND j.killed = 0 AND j.deleted = 0)`, args...)
}

func (s *Store) queryPairStates(ctx context.Context, where string, args ...any) ([]PairState, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.job_id, p.job_space_id, p.status_code, p.exec_id, sd.solver_id
		FROM job_pairs p
		LEFT JOIN jobpair_stage_data sd ON sd.pair_id = p.id AND sd.stage_number = p.primary_stage_number
		WHERE `+where+`
		ORDER BY p.id
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query job pairs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []PairState
	for rows.Next() {
		var (
			ps     PairState
			code   int
			execID sql.NullString
			solver sql.NullInt64
		)
		if err := rows.Scan(&ps.ID, &ps.JobID, &ps.JobSpaceID, &code, &execID, &solver); err != nil {
			return nil, fmt.Errorf("scan job pair: %w", err)
		}
		ps.Status = status.Code(code)
		ps.ExecID = execID.String
		ps.SolverID = solver.Int64
		out = append(out, ps)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job pairs: %w", err)
	}
	return out, nil
}

// TransitionPair moves a pair to `to` only if its current status is one of
// `from`, and moves every stage with it so pair and stages never diverge.
// It reports whether the pair changed.
func (s *Store) TransitionPair(ctx context.Context, pairID int64, from []status.Code, to status.Code) (bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(from) == 0 {
		return false, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	in, args := inClause(from)
	res, err := tx.ExecContext(ctx, `UPDATE job_pairs SET status_code = ? WHERE id = ? AND status_code IN (`+in+`)`,
		append([]any{int(to), pairID}, args...)...)
	if err != nil {
		return false, fmt.Errorf("update job pair status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	if _, err := tx.ExecContext(ctx, `UPDATE jobpair_stage_data SET status_code = ? WHERE pair_id = ?`,
		int(to), pairID); err != nil {
		return false, fmt.Errorf("update stage status: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit transition: %w", err)
	}
	return true, nil
}

// ResetPairForRerun returns a pair to PendingSubmit: disk size zeroed,
// completion row and reported results removed, execution id cleared, every
// stage pending again.
// It reports false when the pair was already pending.
func (s *Store) ResetPairForRerun(ctx context.Context, pairID int64) (bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE job_pairs
		SET status_code = ?, disk_size = 0, exec_id = NULL, rerun_count = rerun_count + 1
		WHERE id = ? AND status_code <> ?
	`, int(status.PendingSubmit), pairID, int(status.PendingSubmit))
	if err != nil {
		return false, fmt.Errorf("reset job pair: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	if _, err := tx.ExecContext(ctx, `UPDATE jobpair_stage_data SET status_code = ?, disk_size = 0 WHERE pair_id = ?`,
		int(status.PendingSubmit), pairID); err != nil {
		return false, fmt.Errorf("reset stage status: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM job_pair_completion WHERE pair_id = ?`, pairID); err != nil {
		return false, fmt.Errorf("delete completion: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM pair_attributes WHERE pair_id = ?`, pairID); err != nil {
		return false, fmt.Errorf("delete pair results: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit rerun: %w", err)
	}
	return true, nil
}

// MarkEnqueued records the backend execution id of a submitted pair. Only
// a pair still in PendingSubmit is moved; a pair paused or killed while it
// was being submitted returns ErrNotPending.
func (s *Store) MarkEnqueued(ctx context.Context, pairID int64, execID string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE job_pairs SET status_code = ?, exec_id = ? WHERE id = ? AND status_code = ?`,
		int(status.Enqueued), execID, pairID, int(status.PendingSubmit))
	if err != nil {
		return fmt.Errorf("mark enqueued: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		var code int
		if err := tx.QueryRowContext(ctx, `SELECT status_code FROM job_pairs WHERE id = ?`, pairID).Scan(&code); err != nil {
			return notFoundOr(err, fmt.Sprintf("job pair %d", pairID), "read job pair status")
		}
		return fmt.Errorf("job pair %d is %s: %w", pairID, status.Code(code), ErrNotPending)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE jobpair_stage_data SET status_code = ? WHERE pair_id = ?`,
		int(status.Enqueued), pairID); err != nil {
		return fmt.Errorf("mark stages enqueued: %w", err)
	}
	return tx.Commit()
}

// StageResult is what the results processor reports for one stage.
type StageResult struct {
	StageNumber int
	Status      status.Code
	Wallclock   float64
	CPU         float64
	DiskSize    int64
	Result      string
}

// RecordStageResult stores one stage's measurements and reported answer.
func (s *Store) RecordStageResult(ctx context.Context, pairID int64, r StageResult) error {
	if ctx == nil {
		ctx = context.Background()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE jobpair_stage_data SET status_code = ?, wallclock = ?, cpu = ?, disk_size = ?
		WHERE pair_id = ? AND stage_number = ?
	`, int(r.Status), r.Wallclock, r.CPU, r.DiskSize, pairID, r.StageNumber)
	if err != nil {
		return fmt.Errorf("update stage result: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("stage %d of pair %d: %w", r.StageNumber, pairID, ErrNotFound)
	}
	if r.Result != "" {
		if err := setPairAttribute(ctx, tx, pairID, r.StageNumber, model.ResultAttribute, r.Result); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CompletePair sets the pair's final status, sums stage disk usage and
// appends a completion row.
func (s *Store) CompletePair(ctx context.Context, pairID int64, code status.Code) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE job_pairs SET status_code = ?,
			disk_size = COALESCE((SELECT SUM(disk_size) FROM jobpair_stage_data WHERE pair_id = ?), 0)
		WHERE id = ?
	`, int(code), pairID, pairID)
	if err != nil {
		return 0, fmt.Errorf("complete job pair: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, fmt.Errorf("job pair %d: %w", pairID, ErrNotFound)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM job_pair_completion WHERE pair_id = ?`, pairID); err != nil {
		return 0, fmt.Errorf("clear completion: %w", err)
	}
	ins, err := tx.ExecContext(ctx, `INSERT INTO job_pair_completion (pair_id, completed_at) VALUES (?, ?)`,
		pairID, formatTime(s.now()))
	if err != nil {
		return 0, fmt.Errorf("insert completion: %w", err)
	}
	completionID, err := ins.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read completion id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit completion: %w", err)
	}
	return completionID, nil
}

// CompletedPairsSince returns (completion id, pair id) of a job's pairs that
// completed after the given watermark, oldest first.
func (s *Store) CompletedPairsSince(ctx context.Context, jobID int64, since int64) ([][2]int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.completion_id, c.pair_id
		FROM job_pair_completion c JOIN job_pairs p ON p.id = c.pair_id
		WHERE p.job_id = ? AND c.completion_id > ?
		ORDER BY c.completion_id
	`, jobID, since)
	if err != nil {
		return nil, fmt.Errorf("query completions: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out [][2]int64
	for rows.Next() {
		var c, p int64
		if err := rows.Scan(&c, &p); err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		out = append(out, [2]int64{c, p})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate completions: %w", err)
	}
	return out, nil
}

// PairDependencies fetches every dependency row of a pair in one query.
func (s *Store) PairDependencies(ctx context.Context, pairID int64) ([]model.PipelineDependency, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT stage_id, dependency_type, input_number
		FROM jobpair_dependencies WHERE pair_id = ?
		ORDER BY stage_id, input_number
	`, pairID)
	if err != nil {
		return nil, fmt.Errorf("query pair dependencies: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.PipelineDependency
	for rows.Next() {
		var (
			d    model.PipelineDependency
			kind string
		)
		if err := rows.Scan(&d.StageID, &kind, &d.InputNumber); err != nil {
			return nil, fmt.Errorf("scan pair dependency: %w", err)
		}
		k, err := model.ParseDependencyKind(kind)
		if err != nil {
			return nil, fmt.Errorf("pair %d: %w", pairID, err)
		}
		d.Kind = k
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pair dependencies: %w", err)
	}
	return out, nil
}

func notFoundOr(err error, what string, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
