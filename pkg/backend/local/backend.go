// Package local runs job pair executions as child processes of the current
// host. It is the development and single-node backend.
package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/3leaps/benchline/pkg/backend"
)

// Backend spawns one child process per execution and tracks it on disk so a
// restarted service still sees (and can kill) executions it started.
type Backend struct {
	store  *Store
	slots  map[string]int
	logger *zap.Logger

	mu sync.Mutex
}

var _ backend.Backend = (*Backend)(nil)

// New creates a backend rooted at root. slots caps concurrent executions
// per queue name.
func New(root string, slots map[string]int, logger *zap.Logger) *Backend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{store: NewStore(root), slots: slots, logger: logger}
}

func (b *Backend) Store() *Store { return b.store }

// Enqueue starts argv for a pair and returns the execution record.
func (b *Backend) Enqueue(ctx context.Context, pairID int64, queue string, argv []string) (*ExecRecord, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("command is required")
	}
	free, err := b.SlotsInQueue(ctx, queue)
	if err != nil {
		return nil, err
	}
	if free <= 0 {
		return nil, fmt.Errorf("queue %q is full", queue)
	}

	execID := uuid.New().String()
	dir := b.store.ExecDir(execID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create exec dir: %w", err)
	}
	stdoutPath := filepath.Join(dir, "stdout.log")
	stderrPath := filepath.Join(dir, "stderr.log")
	stdout, err := os.Create(stdoutPath)
	if err != nil {
		return nil, fmt.Errorf("create stdout log: %w", err)
	}
	stderr, err := os.Create(stderrPath)
	if err != nil {
		_ = stdout.Close()
		return nil, fmt.Errorf("create stderr log: %w", err)
	}

	// #nosec G204 -- argv comes from the job's configured runscript
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Env = append(os.Environ(), fmt.Sprintf("BENCHLINE_PAIR_ID=%d", pairID))

	if err := cmd.Start(); err != nil {
		_ = stdout.Close()
		_ = stderr.Close()
		return nil, fmt.Errorf("start execution: %w", err)
	}

	rec := &ExecRecord{
		ExecID:     execID,
		PairID:     pairID,
		Queue:      queue,
		State:      ExecStateRunning,
		Command:    argv,
		PID:        cmd.Process.Pid,
		CreatedAt:  time.Now().UTC(),
		StdoutPath: stdoutPath,
		StderrPath: stderrPath,
	}
	b.mu.Lock()
	err = b.store.Write(rec)
	b.mu.Unlock()
	if err != nil {
		_ = cmd.Process.Kill()
		_ = stdout.Close()
		_ = stderr.Close()
		return nil, err
	}

	go b.wait(cmd, execID, stdout, stderr)

	b.logger.Debug("Execution started",
		zap.String("exec_id", execID),
		zap.Int64("pair_id", pairID),
		zap.Int("pid", rec.PID))
	return rec, nil
}

func (b *Backend) wait(cmd *exec.Cmd, execID string, stdout, stderr *os.File) {
	waitErr := cmd.Wait()
	_ = stdout.Close()
	_ = stderr.Close()

	b.mu.Lock()
	defer b.mu.Unlock()
	rec, err := b.store.Get(execID)
	if err != nil {
		b.logger.Warn("Execution record unreadable", zap.String("exec_id", execID), zap.Error(err))
		return
	}
	code := cmd.ProcessState.ExitCode()
	rec.ExitCode = &code
	now := time.Now().UTC()
	rec.EndedAt = &now
	if rec.State != ExecStateStopped {
		if waitErr != nil {
			rec.State = ExecStateFailed
		} else {
			rec.State = ExecStateSuccess
		}
	}
	if err := b.store.Write(rec); err != nil {
		b.logger.Warn("Execution record not updated", zap.String("exec_id", execID), zap.Error(err))
	}
}

// KillPair sends SIGTERM to a running execution and marks it stopped.
func (b *Backend) KillPair(_ context.Context, execID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, err := b.store.Get(execID)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", execID, backend.ErrUnknownExecution)
		}
		return err
	}
	if rec.State != ExecStateRunning {
		return nil
	}
	if p, err := os.FindProcess(rec.PID); err == nil {
		if err := p.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("signal %s: %w", execID, err)
		}
	}
	rec.State = ExecStateStopped
	now := time.Now().UTC()
	rec.EndedAt = &now
	return b.store.Write(rec)
}

// KillAll stops every running execution.
func (b *Backend) KillAll(ctx context.Context) error {
	ids, err := b.ActiveExecutionIDs(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for _, id := range ids {
		if err := b.KillPair(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ActiveExecutionIDs lists running executions whose process is alive.
func (b *Backend) ActiveExecutionIDs(_ context.Context) ([]string, error) {
	recs, err := b.running()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ExecID)
	}
	return out, nil
}

// SlotsInQueue is the queue's configured capacity minus running executions.
func (b *Backend) SlotsInQueue(_ context.Context, queue string) (int, error) {
	limit, ok := b.slots[queue]
	if !ok {
		return 0, nil
	}
	recs, err := b.running()
	if err != nil {
		return 0, err
	}
	used := 0
	for _, r := range recs {
		if r.Queue == queue {
			used++
		}
	}
	if free := limit - used; free > 0 {
		return free, nil
	}
	return 0, nil
}

func (b *Backend) running() ([]ExecRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	recs, err := b.store.List()
	if err != nil {
		return nil, err
	}
	out := recs[:0]
	for _, r := range recs {
		if r.State == ExecStateRunning {
			out = append(out, r)
		}
	}
	return out, nil
}
