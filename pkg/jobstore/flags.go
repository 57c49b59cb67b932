package jobstore

import (
	"context"
	"fmt"
)

// GlobalPaused reads the process-wide pause flag.
func (s *Store) GlobalPaused(ctx context.Context) (bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var paused bool
	if err := s.db.QueryRowContext(ctx, `SELECT paused FROM system_flags WHERE id = 1`).Scan(&paused); err != nil {
		return false, fmt.Errorf("read global pause: %w", err)
	}
	return paused, nil
}

// SetGlobalPaused writes the process-wide pause flag.
func (s *Store) SetGlobalPaused(ctx context.Context, paused bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE system_flags SET paused = ?, updated_at = ? WHERE id = 1`,
		boolToInt(paused), formatTime(s.now())); err != nil {
		return fmt.Errorf("write global pause: %w", err)
	}
	return nil
}
