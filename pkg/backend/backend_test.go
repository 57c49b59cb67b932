package backend_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/3leaps/benchline/pkg/backend"
	"github.com/3leaps/benchline/pkg/backend/backendtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimited_Disabled(t *testing.T) {
	f := backendtest.New()
	assert.Same(t, backend.Backend(f), backend.RateLimited(f, 0, 0))
}

func TestRateLimited_PassesThrough(t *testing.T) {
	ctx := context.Background()
	f := backendtest.New("a", "b")
	b := backend.RateLimited(f, 1000, 10)

	require.NoError(t, b.KillPair(ctx, "a"))
	ids, err := b.ActiveExecutionIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids)
	assert.Equal(t, []string{"a"}, f.Kills())
}

func TestRateLimited_HonorsContext(t *testing.T) {
	f := backendtest.New("a", "b")
	b := backend.RateLimited(f, 0.001, 1)

	require.NoError(t, b.KillPair(context.Background(), "a"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := b.KillPair(ctx, "b")
	require.Error(t, err)
	assert.Equal(t, []string{"a"}, f.Kills(), "throttled call never reaches the backend")
}

func TestRateLimited_PropagatesKillError(t *testing.T) {
	f := backendtest.New("a")
	boom := errors.New("boom")
	f.KillErr = map[string]error{"a": boom}
	b := backend.RateLimited(f, 100, 1)
	assert.ErrorIs(t, b.KillPair(context.Background(), "a"), boom)
}

func TestIDSet(t *testing.T) {
	set := backend.IDSet([]string{"a", "b", "a"})
	assert.Len(t, set, 2)
	_, ok := set["b"]
	assert.True(t, ok)
}
