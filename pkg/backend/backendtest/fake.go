// Package backendtest provides an in-memory Backend for tests.
package backendtest

import (
	"context"
	"sort"
	"sync"

	"github.com/3leaps/benchline/pkg/backend"
)

// Fake records every call and serves a mutable live set.
type Fake struct {
	mu      sync.Mutex
	live    map[string]struct{}
	kills   []string
	killAll int
	slots   map[string]int

	// KillErr, when set, is returned by KillPair for matching ids.
	KillErr map[string]error
	// ListErr, when set, is returned by ActiveExecutionIDs.
	ListErr error
	// OnList runs inside ActiveExecutionIDs before the snapshot is taken.
	OnList func()
}

var _ backend.Backend = (*Fake)(nil)

func New(live ...string) *Fake {
	f := &Fake{live: make(map[string]struct{}), slots: make(map[string]int)}
	for _, id := range live {
		f.live[id] = struct{}{}
	}
	return f
}

// Start adds an execution to the live set.
func (f *Fake) Start(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.live[id] = struct{}{}
}

func (f *Fake) SetSlots(queue string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slots[queue] = n
}

func (f *Fake) KillPair(_ context.Context, execID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kills = append(f.kills, execID)
	if err := f.KillErr[execID]; err != nil {
		return err
	}
	delete(f.live, execID)
	return nil
}

func (f *Fake) KillAll(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.killAll++
	f.live = make(map[string]struct{})
	return nil
}

func (f *Fake) ActiveExecutionIDs(_ context.Context) ([]string, error) {
	if f.OnList != nil {
		f.OnList()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	out := make([]string, 0, len(f.live))
	for id := range f.live {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (f *Fake) SlotsInQueue(_ context.Context, queue string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.slots[queue], nil
}

// Kills returns the ids passed to KillPair, in call order.
func (f *Fake) Kills() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.kills...)
}

// KillAllCalls returns how often KillAll ran.
func (f *Fake) KillAllCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.killAll
}
