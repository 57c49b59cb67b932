package local

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"
)

// Store persists ExecRecords on disk.
//
// Directory layout:
//
//	<root>/<exec_id>/exec.json
//	<root>/<exec_id>/stdout.log
//	<root>/<exec_id>/stderr.log
type Store struct {
	root string
}

func NewStore(root string) *Store {
	return &Store{root: strings.TrimSpace(root)}
}

func (s *Store) ExecDir(execID string) string {
	return filepath.Join(s.root, execID)
}

func (s *Store) ExecPath(execID string) string {
	return filepath.Join(s.ExecDir(execID), "exec.json")
}

func (s *Store) ensureRoot() error {
	if s.root == "" {
		return fmt.Errorf("local backend root dir is empty")
	}
	return os.MkdirAll(s.root, 0755)
}

// Write replaces the record atomically via a temp file and rename.
func (s *Store) Write(record *ExecRecord) error {
	if record == nil {
		return fmt.Errorf("exec record is nil")
	}
	execID := strings.TrimSpace(record.ExecID)
	if execID == "" {
		return fmt.Errorf("exec_id is required")
	}
	if err := s.ensureRoot(); err != nil {
		return err
	}

	dir := s.ExecDir(execID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create exec dir: %w", err)
	}

	b, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal exec record: %w", err)
	}
	b = append(b, '\n')

	tmp, err := os.CreateTemp(dir, "exec.json.tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp exec file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp exec file: %w", err)
	}
	if err := os.Rename(tmpName, s.ExecPath(execID)); err != nil {
		return fmt.Errorf("rename exec file: %w", err)
	}
	return nil
}

// Get reads a record. A running record whose process is gone is rewritten
// as unknown.
func (s *Store) Get(execID string) (*ExecRecord, error) {
	execID = strings.TrimSpace(execID)
	if execID == "" {
		return nil, fmt.Errorf("exec_id is required")
	}
	b, err := os.ReadFile(s.ExecPath(execID))
	if err != nil {
		return nil, err
	}
	var record ExecRecord
	if err := json.Unmarshal(b, &record); err != nil {
		return nil, fmt.Errorf("parse exec.json: %w", err)
	}

	if record.State == ExecStateRunning && record.PID > 0 && !isProcessAlive(record.PID) {
		record.State = ExecStateUnknown
		now := time.Now().UTC()
		record.EndedAt = &now
		_ = s.Write(&record)
	}
	return &record, nil
}

// List returns every readable record, newest first.
func (s *Store) List() ([]ExecRecord, error) {
	if err := s.ensureRoot(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read exec root: %w", err)
	}

	out := make([]ExecRecord, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		r, err := s.Get(entry.Name())
		if err != nil {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// signal 0 checks for existence without delivering a signal.
	return p.Signal(syscall.Signal(0)) == nil
}
