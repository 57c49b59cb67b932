package jobstore

import (
	"context"
	"fmt"
)

// JobSpace is a node in a job's space hierarchy. Pairs belong to one space.
type JobSpace struct {
	ID       int64
	ParentID int64
	JobID    int64
	Name     string
}

// CreateJobSpace inserts a job space and returns its id.
func (s *Store) CreateJobSpace(ctx context.Context, js JobSpace) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO job_spaces (id, parent_id, job_id, name) VALUES (?, ?, ?, ?)`,
		nullInt64(js.ID), nullInt64(js.ParentID), js.JobID, js.Name)
	if err != nil {
		return 0, fmt.Errorf("insert job space: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read job space id: %w", err)
	}
	return id, nil
}

// JobSpaceSubtree returns root and every descendant space id.
func (s *Store) JobSpaceSubtree(ctx context.Context, rootID int64) ([]int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	rows, err := s.db.QueryContext(ctx, `
		WITH RECURSIVE tree(id) AS (
			SELECT id FROM job_spaces WHERE id = ?
			UNION
			SELECT c.id FROM job_spaces c JOIN tree t ON c.parent_id = t.id
		)
		SELECT id FROM tree ORDER BY id
	`, rootID)
	if err != nil {
		return nil, fmt.Errorf("query job space subtree: %w", err)
	}
	return scanIDs(rows)
}

// JobSpaceHierarchy returns every space under the job's primary space.
func (s *Store) JobSpaceHierarchy(ctx context.Context, jobID int64) ([]int64, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return s.JobSpaceSubtree(ctx, job.PrimarySpaceID)
}

// JobForSpace returns the id of the job owning a space.
func (s *Store) JobForSpace(ctx context.Context, spaceID int64) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var jobID int64
	if err := s.db.QueryRowContext(ctx, `SELECT job_id FROM job_spaces WHERE id = ?`, spaceID).Scan(&jobID); err != nil {
		return 0, notFoundOr(err, fmt.Sprintf("job space %d", spaceID), "get job space")
	}
	return jobID, nil
}
