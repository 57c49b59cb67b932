package jobstore

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/3leaps/benchline/pkg/model"
	"github.com/3leaps/benchline/pkg/status"
)

// GetPair loads one pair with stages and outcomes. Dependencies are left
// unattached; see pipeline.Resolver.
func (s *Store) GetPair(ctx context.Context, pairID int64) (*model.JobPair, *model.Arena, error) {
	arena := model.NewArena()
	pairs, err := s.loadPairs(ctx, arena, "p.id = ?", pairID)
	if err != nil {
		return nil, nil, err
	}
	if len(pairs) == 0 {
		return nil, nil, fmt.Errorf("job pair %d: %w", pairID, ErrNotFound)
	}
	return &pairs[0], arena, nil
}

// LoadPairsInSpaces loads every pair that belongs to one of the given job
// spaces, sharing one arena.
func (s *Store) LoadPairsInSpaces(ctx context.Context, spaceIDs []int64) (*model.Arena, []model.JobPair, error) {
	arena := model.NewArena()
	if len(spaceIDs) == 0 {
		return arena, nil, nil
	}
	ph := placeholders(len(spaceIDs))
	args := make([]any, len(spaceIDs))
	for i, id := range spaceIDs {
		args[i] = id
	}
	pairs, err := s.loadPairs(ctx, arena, "p.job_space_id IN ("+ph+")", args...)
	if err != nil {
		return nil, nil, err
	}
	return arena, pairs, nil
}

// loadPairs runs one query per table, each scoped by the same pair filter,
// and stitches the results together in memory. Pairs whose benchmark row
// is gone are logged and skipped.
func (s *Store) loadPairs(ctx context.Context, arena *model.Arena, where string, args ...any) ([]model.JobPair, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	scope := "SELECT p.id FROM job_pairs p WHERE " + where

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.job_id, p.job_space_id, p.bench_id, b.id, b.name, p.node_id, n.name,
			p.pipeline_id, p.primary_stage_number, p.status_code, p.exec_id,
			c.completion_id, p.disk_size, p.rerun_count
		FROM job_pairs p
		LEFT JOIN benchmarks b ON b.id = p.bench_id
		LEFT JOIN worker_nodes n ON n.id = p.node_id
		LEFT JOIN job_pair_completion c ON c.pair_id = p.id
		WHERE `+where+`
		ORDER BY p.id
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query job pairs: %w", err)
	}
	var pairs []model.JobPair
	index := make(map[int64]int)
	for rows.Next() {
		var (
			p          model.JobPair
			benchID    int64
			benchRow   sql.NullInt64
			benchName  sql.NullString
			nodeID     sql.NullInt64
			nodeName   sql.NullString
			pipelineID sql.NullInt64
			code       int
			execID     sql.NullString
			completion sql.NullInt64
		)
		if err := rows.Scan(&p.ID, &p.JobID, &p.JobSpaceID, &benchID, &benchRow, &benchName, &nodeID, &nodeName,
			&pipelineID, &p.PrimaryStageNumber, &code, &execID, &completion, &p.DiskSize, &p.RerunCount); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan job pair: %w", err)
		}
		if !benchRow.Valid {
			s.logger.Warn("Skipping job pair with missing benchmark",
				zap.Int64("pair_id", p.ID),
				zap.Int64("job_id", p.JobID),
				zap.Int64("bench_id", benchID))
			continue
		}
		p.Benchmark = arena.Benchmark(model.Benchmark{ID: benchID, Name: benchName.String})
		if nodeID.Valid {
			p.Node = arena.Node(model.WorkerNode{ID: nodeID.Int64, Name: nodeName.String})
		}
		p.PipelineID = pipelineID.Int64
		p.Status = status.Code(code)
		p.ExecID = execID.String
		p.CompletionID = completion.Int64
		index[p.ID] = len(pairs)
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate job pairs: %w", err)
	}
	_ = rows.Close()
	if len(pairs) == 0 {
		return nil, nil
	}

	if err := s.loadStages(ctx, arena, pairs, index, scope, args); err != nil {
		return nil, err
	}
	if err := s.loadOutcomes(ctx, pairs, index, scope, args); err != nil {
		return nil, err
	}
	if err := s.loadInputs(ctx, pairs, index, scope, args); err != nil {
		return nil, err
	}
	for i := range pairs {
		model.SortStages(&pairs[i])
	}
	return pairs, nil
}

func (s *Store) loadStages(ctx context.Context, arena *model.Arena, pairs []model.JobPair, index map[int64]int, scope string, args []any) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sd.pair_id, sd.stage_id, sd.stage_number, sd.status_code, sd.wallclock, sd.cpu, sd.disk_size,
			sd.solver_id, sv.name, sv.build_status, sd.config_id, cf.name
		FROM jobpair_stage_data sd
		LEFT JOIN solvers sv ON sv.id = sd.solver_id
		LEFT JOIN configurations cf ON cf.id = sd.config_id
		WHERE sd.pair_id IN (`+scope+`)
		ORDER BY sd.pair_id, sd.stage_number
	`, args...)
	if err != nil {
		return fmt.Errorf("query stage data: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			pairID     int64
			st         model.JoblineStage
			code       int
			solverID   sql.NullInt64
			solverName sql.NullString
			build      sql.NullString
			configID   sql.NullInt64
			configName sql.NullString
		)
		if err := rows.Scan(&pairID, &st.StageID, &st.StageNumber, &code, &st.Wallclock, &st.CPU, &st.DiskSize,
			&solverID, &solverName, &build, &configID, &configName); err != nil {
			return fmt.Errorf("scan stage data: %w", err)
		}
		st.Status = status.Code(code)
		if solverID.Valid {
			st.Solver = arena.Solver(model.Solver{ID: solverID.Int64, Name: solverName.String, BuildStatus: model.BuildStatus(build.String)})
		}
		if configID.Valid {
			st.Configuration = arena.Configuration(model.Configuration{ID: configID.Int64, SolverID: solverID.Int64, Name: configName.String})
		}
		if i, ok := index[pairID]; ok {
			pairs[i].Stages = append(pairs[i].Stages, st)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate stage data: %w", err)
	}
	return nil
}

func (s *Store) loadOutcomes(ctx context.Context, pairs []model.JobPair, index map[int64]int, scope string, args []any) error {
	actual := make(map[[2]int64]string)
	rows, err := s.db.QueryContext(ctx, `
		SELECT pair_id, stage_number, attr_value FROM pair_attributes
		WHERE attr_key = ? AND pair_id IN (`+scope+`)
	`, append([]any{model.ResultAttribute}, args...)...)
	if err != nil {
		return fmt.Errorf("query pair results: %w", err)
	}
	for rows.Next() {
		var (
			pairID int64
			stage  int64
			value  string
		)
		if err := rows.Scan(&pairID, &stage, &value); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan pair result: %w", err)
		}
		actual[[2]int64{pairID, stage}] = value
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return fmt.Errorf("iterate pair results: %w", err)
	}
	_ = rows.Close()

	expected := make(map[int64]string)
	brows, err := s.db.QueryContext(ctx, `
		SELECT bench_id, attr_value FROM bench_attributes
		WHERE attr_key = ? AND bench_id IN (SELECT p.bench_id FROM job_pairs p WHERE p.id IN (`+scope+`))
	`, append([]any{model.ExpectedAttribute}, args...)...)
	if err != nil {
		return fmt.Errorf("query expected results: %w", err)
	}
	defer func() { _ = brows.Close() }()
	for brows.Next() {
		var (
			benchID int64
			value   string
		)
		if err := brows.Scan(&benchID, &value); err != nil {
			return fmt.Errorf("scan expected result: %w", err)
		}
		expected[benchID] = value
	}
	if err := brows.Err(); err != nil {
		return fmt.Errorf("iterate expected results: %w", err)
	}

	for _, i := range index {
		p := &pairs[i]
		exp, hasExp := expected[p.Benchmark.ID]
		for j := range p.Stages {
			st := &p.Stages[j]
			if v, ok := actual[[2]int64{p.ID, int64(st.StageNumber)}]; ok {
				v := v
				st.Outcome.Actual = &v
			}
			if hasExp {
				e := exp
				st.Outcome.Expected = &e
			}
		}
	}
	return nil
}

func (s *Store) loadInputs(ctx context.Context, pairs []model.JobPair, index map[int64]int, scope string, args []any) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pair_id, bench_id FROM jobpair_inputs
		WHERE pair_id IN (`+scope+`)
		ORDER BY pair_id, input_number
	`, args...)
	if err != nil {
		return fmt.Errorf("query pair inputs: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var pairID, benchID int64
		if err := rows.Scan(&pairID, &benchID); err != nil {
			return fmt.Errorf("scan pair input: %w", err)
		}
		if i, ok := index[pairID]; ok {
			pairs[i].Inputs = append(pairs[i].Inputs, benchID)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate pair inputs: %w", err)
	}
	return nil
}
