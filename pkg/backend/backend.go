// Package backend defines the execution backend capability that job pair
// lifecycle operations drive: killing executions, listing live executions
// and reporting queue capacity.
package backend

import (
	"context"
	"errors"
)

// ErrUnknownExecution is returned by KillPair for an id the backend does not hold.
var ErrUnknownExecution = errors.New("unknown execution")

// Backend is the remote cluster scheduler as seen by the lifecycle engine.
type Backend interface {
	// KillPair stops one execution. Killing an execution that already ended
	// is not an error.
	KillPair(ctx context.Context, execID string) error
	// KillAll stops every execution the backend holds.
	KillAll(ctx context.Context) error
	// ActiveExecutionIDs lists executions the backend currently holds.
	ActiveExecutionIDs(ctx context.Context) ([]string, error)
	// SlotsInQueue reports free execution slots of a queue.
	SlotsInQueue(ctx context.Context, queue string) (int, error)
}

// IDSet turns a list of execution ids into a lookup set.
func IDSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
