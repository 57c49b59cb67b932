package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/3leaps/benchline/pkg/model"
)

// UpsertSolver inserts or renames a solver.
func (s *Store) UpsertSolver(ctx context.Context, sv model.Solver) error {
	if ctx == nil {
		ctx = context.Background()
	}
	build := sv.BuildStatus
	if build == "" {
		build = model.BuildStatusBuilt
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO solvers (id, name, build_status) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, build_status = excluded.build_status
	`, sv.ID, sv.Name, string(build))
	if err != nil {
		return fmt.Errorf("upsert solver: %w", err)
	}
	return nil
}

// GetSolver loads one solver.
func (s *Store) GetSolver(ctx context.Context, id int64) (*model.Solver, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var (
		sv    model.Solver
		build string
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, name, build_status FROM solvers WHERE id = ?`, id).
		Scan(&sv.ID, &sv.Name, &build)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("solver %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get solver: %w", err)
	}
	sv.BuildStatus = model.BuildStatus(build)
	return &sv, nil
}

// SetSolverBuildStatus records the outcome of an on-cluster solver build.
func (s *Store) SetSolverBuildStatus(ctx context.Context, solverID int64, st model.BuildStatus) error {
	if ctx == nil {
		ctx = context.Background()
	}
	res, err := s.db.ExecContext(ctx, `UPDATE solvers SET build_status = ? WHERE id = ?`, string(st), solverID)
	if err != nil {
		return fmt.Errorf("set solver build status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("solver %d: %w", solverID, ErrNotFound)
	}
	return nil
}

// UpsertConfiguration registers a solver configuration. It does not touch
// cached statistics; renames of configurations jobs already ran go through
// RenameConfiguration and the stats invalidation that follows it.
func (s *Store) UpsertConfiguration(ctx context.Context, c model.Configuration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO configurations (id, solver_id, name) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET solver_id = excluded.solver_id, name = excluded.name
	`, c.ID, c.SolverID, c.Name)
	if err != nil {
		return fmt.Errorf("upsert configuration: %w", err)
	}
	return nil
}

// GetConfiguration loads one configuration.
func (s *Store) GetConfiguration(ctx context.Context, id int64) (*model.Configuration, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var c model.Configuration
	err := s.db.QueryRowContext(ctx, `SELECT id, solver_id, name FROM configurations WHERE id = ?`, id).
		Scan(&c.ID, &c.SolverID, &c.Name)
	if err != nil {
		return nil, notFoundOr(err, fmt.Sprintf("configuration %d", id), "get configuration")
	}
	return &c, nil
}

// RenameConfiguration changes a configuration's display name. Cached
// statistics keep the old name until they are invalidated.
func (s *Store) RenameConfiguration(ctx context.Context, id int64, name string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(name) == "" {
		return errors.New("configuration name is required")
	}
	res, err := s.db.ExecContext(ctx, `UPDATE configurations SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return fmt.Errorf("rename configuration: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("configuration %d: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteConfiguration removes a configuration. Stage rows that ran it keep
// the id and load without a name.
func (s *Store) DeleteConfiguration(ctx context.Context, id int64) error {
	if ctx == nil {
		ctx = context.Background()
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM configurations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete configuration: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("configuration %d: %w", id, ErrNotFound)
	}
	return nil
}

// JobsUsingConfiguration lists the jobs with a stage that ran the
// configuration or a cached stats row for it, ascending.
func (s *Store) JobsUsingConfiguration(ctx context.Context, id int64) ([]int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.job_id FROM jobpair_stage_data sd JOIN job_pairs p ON p.id = sd.pair_id WHERE sd.config_id = ?
		UNION
		SELECT job_id FROM job_stats WHERE config_id = ?
		ORDER BY 1
	`, id, id)
	if err != nil {
		return nil, fmt.Errorf("query jobs using configuration: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []int64
	for rows.Next() {
		var jobID int64
		if err := rows.Scan(&jobID); err != nil {
			return nil, fmt.Errorf("scan job id: %w", err)
		}
		out = append(out, jobID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs using configuration: %w", err)
	}
	return out, nil
}

// UpsertBenchmark inserts a benchmark and replaces the given attributes.
func (s *Store) UpsertBenchmark(ctx context.Context, b model.Benchmark, attrs map[string]string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO benchmarks (id, name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`, b.ID, b.Name); err != nil {
		return fmt.Errorf("upsert benchmark: %w", err)
	}
	for k, v := range attrs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO bench_attributes (bench_id, attr_key, attr_value) VALUES (?, ?, ?)
			ON CONFLICT(bench_id, attr_key) DO UPDATE SET attr_value = excluded.attr_value
		`, b.ID, k, v); err != nil {
			return fmt.Errorf("upsert benchmark attribute: %w", err)
		}
	}
	return tx.Commit()
}

// UpsertNode registers a worker node and returns its id.
func (s *Store) UpsertNode(ctx context.Context, name string) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO worker_nodes (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name); err != nil {
		return 0, fmt.Errorf("upsert node: %w", err)
	}
	var id int64
	if err := s.db.QueryRowContext(ctx, `SELECT id FROM worker_nodes WHERE name = ?`, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("read node id: %w", err)
	}
	return id, nil
}

// SavePipeline writes a pipeline with its stages and declared dependencies,
// replacing any previous definition with the same id.
func (s *Store) SavePipeline(ctx context.Context, p model.SolverPipeline) error {
	if ctx == nil {
		ctx = context.Background()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM pipelines WHERE id = ?`, p.ID); err != nil {
		return fmt.Errorf("replace pipeline: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO pipelines (id, name, primary_stage_number) VALUES (?, ?, ?)`,
		p.ID, p.Name, p.PrimaryStageNumber); err != nil {
		return fmt.Errorf("insert pipeline: %w", err)
	}
	for _, st := range p.Stages {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO pipeline_stages (id, pipeline_id, stage_number, config_id) VALUES (?, ?, ?, ?)
		`, st.ID, p.ID, st.StageNumber, nullInt64(st.ConfigID)); err != nil {
			return fmt.Errorf("insert pipeline stage: %w", err)
		}
		for _, d := range st.Dependencies {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO pipeline_dependencies (stage_id, dependency_type, input_number) VALUES (?, ?, ?)
			`, st.ID, string(d.Kind), d.InputNumber); err != nil {
				return fmt.Errorf("insert pipeline dependency: %w", err)
			}
		}
	}
	return tx.Commit()
}

// GetPipeline loads a pipeline with stages ordered by stage number.
func (s *Store) GetPipeline(ctx context.Context, id int64) (*model.SolverPipeline, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	p := &model.SolverPipeline{ID: id}
	err := s.db.QueryRowContext(ctx, `SELECT name, primary_stage_number FROM pipelines WHERE id = ?`, id).
		Scan(&p.Name, &p.PrimaryStageNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("pipeline %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get pipeline: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, stage_number, config_id FROM pipeline_stages
		WHERE pipeline_id = ? ORDER BY stage_number
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query pipeline stages: %w", err)
	}
	for rows.Next() {
		var (
			st  model.PipelineStage
			cfg sql.NullInt64
		)
		if err := rows.Scan(&st.ID, &st.StageNumber, &cfg); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan pipeline stage: %w", err)
		}
		st.ConfigID = cfg.Int64
		p.Stages = append(p.Stages, st)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate pipeline stages: %w", err)
	}
	_ = rows.Close()

	deps, err := s.db.QueryContext(ctx, `
		SELECT d.stage_id, d.dependency_type, d.input_number
		FROM pipeline_dependencies d
		JOIN pipeline_stages st ON st.id = d.stage_id
		WHERE st.pipeline_id = ?
		ORDER BY d.stage_id, d.input_number
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query pipeline dependencies: %w", err)
	}
	defer func() { _ = deps.Close() }()
	for deps.Next() {
		var (
			d    model.PipelineDependency
			kind string
		)
		if err := deps.Scan(&d.StageID, &kind, &d.InputNumber); err != nil {
			return nil, fmt.Errorf("scan pipeline dependency: %w", err)
		}
		d.Kind = model.DependencyKind(kind)
		for i := range p.Stages {
			if p.Stages[i].ID == d.StageID {
				p.Stages[i].Dependencies = append(p.Stages[i].Dependencies, d)
			}
		}
	}
	if err := deps.Err(); err != nil {
		return nil, fmt.Errorf("iterate pipeline dependencies: %w", err)
	}
	return p, nil
}

func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
