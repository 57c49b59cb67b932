package jobstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

const SchemaVersion = 2

// Migrate creates (or upgrades) the job schema in-place.
//
// Version 2 adds rerun_count to job_pairs for the failed-pair rerun sweep.
func Migrate(ctx context.Context, db *sql.DB) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if db == nil {
		return fmt.Errorf("db is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS schema_meta (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			schema_version INTEGER NOT NULL
		);`,
		`INSERT INTO schema_meta (id, schema_version)
			VALUES (1, 0)
			ON CONFLICT(id) DO NOTHING;`,

		// Single-row process-wide flags. Read on every check, never cached.
		`CREATE TABLE IF NOT EXISTS system_flags (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			paused INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT
		);`,
		`INSERT INTO system_flags (id, paused)
			VALUES (1, 0)
			ON CONFLICT(id) DO NOTHING;`,

		`CREATE TABLE IF NOT EXISTS solvers (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			build_status TEXT NOT NULL DEFAULT 'built'
		);`,
		`CREATE TABLE IF NOT EXISTS configurations (
			id INTEGER PRIMARY KEY,
			solver_id INTEGER NOT NULL REFERENCES solvers(id),
			name TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS benchmarks (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS bench_attributes (
			bench_id INTEGER NOT NULL REFERENCES benchmarks(id) ON DELETE CASCADE,
			attr_key TEXT NOT NULL,
			attr_value TEXT NOT NULL,
			PRIMARY KEY (bench_id, attr_key)
		);`,
		`CREATE TABLE IF NOT EXISTS worker_nodes (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL UNIQUE
		);`,

		`CREATE TABLE IF NOT EXISTS pipelines (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			primary_stage_number INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS pipeline_stages (
			id INTEGER PRIMARY KEY,
			pipeline_id INTEGER NOT NULL REFERENCES pipelines(id) ON DELETE CASCADE,
			stage_number INTEGER NOT NULL,
			config_id INTEGER,
			UNIQUE (pipeline_id, stage_number)
		);`,
		`CREATE TABLE IF NOT EXISTS pipeline_dependencies (
			stage_id INTEGER NOT NULL REFERENCES pipeline_stages(id) ON DELETE CASCADE,
			dependency_type TEXT NOT NULL,
			input_number INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_pipeline_dependencies_stage ON pipeline_dependencies(stage_id);`,

		`CREATE TABLE IF NOT EXISTS jobs (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			user_id INTEGER NOT NULL DEFAULT 0,
			primary_space_id INTEGER NOT NULL DEFAULT 0,
			queue_id INTEGER NOT NULL DEFAULT 0,
			seed INTEGER NOT NULL DEFAULT 0,
			disk_size INTEGER NOT NULL DEFAULT 0,
			cpu_timeout INTEGER NOT NULL DEFAULT 0,
			wallclock_timeout INTEGER NOT NULL DEFAULT 0,
			max_memory INTEGER NOT NULL DEFAULT 0,
			paused INTEGER NOT NULL DEFAULT 0,
			admin_paused INTEGER NOT NULL DEFAULT 0,
			killed INTEGER NOT NULL DEFAULT 0,
			deleted INTEGER NOT NULL DEFAULT 0,
			read_only INTEGER NOT NULL DEFAULT 0,
			build_job INTEGER NOT NULL DEFAULT 0,
			uses_dependencies INTEGER NOT NULL DEFAULT 0,
			high_priority INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS job_stage_attrs (
			job_id INTEGER NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
			stage_number INTEGER NOT NULL,
			pre_processor_id INTEGER NOT NULL DEFAULT 0,
			post_processor_id INTEGER NOT NULL DEFAULT 0,
			cpu_timeout INTEGER NOT NULL DEFAULT 0,
			wallclock_timeout INTEGER NOT NULL DEFAULT 0,
			max_memory INTEGER NOT NULL DEFAULT 0,
			bench_suffix TEXT NOT NULL DEFAULT '',
			results_interval INTEGER NOT NULL DEFAULT 0,
			stdout_save_option TEXT NOT NULL DEFAULT 'save',
			extra_output_save_option TEXT NOT NULL DEFAULT 'save',
			PRIMARY KEY (job_id, stage_number)
		);`,
		// job_id is not a foreign key: a job's primary space is created first.
		`CREATE TABLE IF NOT EXISTS job_spaces (
			id INTEGER PRIMARY KEY,
			parent_id INTEGER REFERENCES job_spaces(id),
			job_id INTEGER NOT NULL DEFAULT 0,
			name TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_job_spaces_parent ON job_spaces(parent_id);`,
		`CREATE INDEX IF NOT EXISTS idx_job_spaces_job ON job_spaces(job_id);`,

		`CREATE TABLE IF NOT EXISTS job_pairs (
			id INTEGER PRIMARY KEY,
			job_id INTEGER NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
			job_space_id INTEGER NOT NULL,
			bench_id INTEGER NOT NULL REFERENCES benchmarks(id),
			node_id INTEGER REFERENCES worker_nodes(id),
			pipeline_id INTEGER,
			primary_stage_number INTEGER NOT NULL DEFAULT 1,
			status_code INTEGER NOT NULL,
			exec_id TEXT,
			disk_size INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_job_pairs_job_status ON job_pairs(job_id, status_code);`,
		`CREATE INDEX IF NOT EXISTS idx_job_pairs_space ON job_pairs(job_space_id);`,
		`CREATE INDEX IF NOT EXISTS idx_job_pairs_status ON job_pairs(status_code);`,
		`CREATE TABLE IF NOT EXISTS jobpair_inputs (
			pair_id INTEGER NOT NULL REFERENCES job_pairs(id) ON DELETE CASCADE,
			input_number INTEGER NOT NULL,
			bench_id INTEGER NOT NULL,
			PRIMARY KEY (pair_id, input_number)
		);`,
		`CREATE TABLE IF NOT EXISTS jobpair_stage_data (
			pair_id INTEGER NOT NULL REFERENCES job_pairs(id) ON DELETE CASCADE,
			stage_id INTEGER NOT NULL,
			stage_number INTEGER NOT NULL,
			solver_id INTEGER,
			config_id INTEGER,
			status_code INTEGER NOT NULL,
			wallclock REAL NOT NULL DEFAULT 0,
			cpu REAL NOT NULL DEFAULT 0,
			disk_size INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (pair_id, stage_number)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_jobpair_stage_data_config ON jobpair_stage_data(config_id);`,
		`CREATE TABLE IF NOT EXISTS pair_attributes (
			pair_id INTEGER NOT NULL REFERENCES job_pairs(id) ON DELETE CASCADE,
			stage_number INTEGER NOT NULL,
			attr_key TEXT NOT NULL,
			attr_value TEXT NOT NULL,
			PRIMARY KEY (pair_id, stage_number, attr_key)
		);`,
		`CREATE TABLE IF NOT EXISTS jobpair_dependencies (
			pair_id INTEGER NOT NULL REFERENCES job_pairs(id) ON DELETE CASCADE,
			stage_id INTEGER NOT NULL,
			dependency_type TEXT NOT NULL,
			input_number INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_jobpair_dependencies_pair ON jobpair_dependencies(pair_id);`,
		// Completion bookkeeping. completion_id is a monotonic watermark for
		// incremental readers.
		`CREATE TABLE IF NOT EXISTS job_pair_completion (
			completion_id INTEGER PRIMARY KEY AUTOINCREMENT,
			pair_id INTEGER NOT NULL UNIQUE REFERENCES job_pairs(id) ON DELETE CASCADE,
			completed_at TEXT NOT NULL
		);`,

		`CREATE TABLE IF NOT EXISTS job_stats (
			job_id INTEGER NOT NULL,
			job_space_id INTEGER NOT NULL,
			stage_number INTEGER NOT NULL,
			config_id INTEGER NOT NULL,
			config_name TEXT NOT NULL DEFAULT '',
			solver_id INTEGER NOT NULL DEFAULT 0,
			solver_name TEXT NOT NULL DEFAULT '',
			complete INTEGER NOT NULL DEFAULT 0,
			correct INTEGER NOT NULL DEFAULT 0,
			incorrect INTEGER NOT NULL DEFAULT 0,
			unknown INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0,
			resource_out INTEGER NOT NULL DEFAULT 0,
			incomplete INTEGER NOT NULL DEFAULT 0,
			wallclock REAL NOT NULL DEFAULT 0,
			cpu REAL NOT NULL DEFAULT 0,
			conflicts INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (job_space_id, stage_number, config_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_job_stats_job ON job_stats(job_id);`,
	}

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	var current int
	if err := tx.QueryRowContext(ctx, "SELECT schema_version FROM schema_meta WHERE id = 1").Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	if current < 2 {
		if _, err := tx.ExecContext(ctx, `ALTER TABLE job_pairs ADD COLUMN rerun_count INTEGER NOT NULL DEFAULT 0`); err != nil {
			if !strings.Contains(strings.ToLower(err.Error()), "duplicate column name") {
				return fmt.Errorf("migrate rerun_count: %w", err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx, "UPDATE schema_meta SET schema_version = ? WHERE id = 1", SchemaVersion); err != nil {
		return fmt.Errorf("update schema version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migrate: %w", err)
	}
	return nil
}
