package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCode_ExactlyOneBucket(t *testing.T) {
	for _, c := range All() {
		n := 0
		if c.Incomplete() {
			n++
		}
		if c.StatComplete() {
			n++
		}
		if c.Failed() {
			n++
		}
		assert.Equal(t, 1, n, "code %s must land in exactly one bucket", c)
	}
}

func TestCode_FamilyOrder(t *testing.T) {
	prev := FamilyInvalid
	for _, c := range All() {
		f := c.Family()
		require.NotEqual(t, FamilyInvalid, f, "code %s", c)
		assert.GreaterOrEqual(t, int(f), int(prev), "family order broken at %s", c)
		prev = f
	}
}

func TestCode_Predicates(t *testing.T) {
	assert.True(t, ExceedMem.Resource())
	assert.True(t, ExceedMem.StatComplete())
	assert.False(t, ExceedMem.Failed())

	assert.True(t, Complete.StatComplete())
	assert.False(t, Complete.Resource())

	assert.True(t, Killed.Failed())
	assert.True(t, Killed.Terminal())
	assert.True(t, Paused.Incomplete())
	assert.False(t, Paused.OnBackend())

	for _, c := range All() {
		if c.OnBackend() {
			assert.True(t, c.Incomplete(), "on-backend code %s must be incomplete", c)
		}
	}
	assert.False(t, WaitResults.OnBackend())
	assert.True(t, Enqueued.OnBackend())
}

func TestCode_Invalid(t *testing.T) {
	var zero Code
	assert.False(t, zero.Valid())
	assert.Equal(t, FamilyInvalid, zero.Family())
	assert.False(t, zero.Incomplete())
	assert.False(t, zero.Failed())
	assert.Equal(t, "invalid(0)", zero.String())
}

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Code
	}{
		{"pending_submit", PendingSubmit},
		{"EXCEED-MEM", ExceedMem},
		{" complete ", Complete},
		{"9", Complete},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "0", "99", "nope"} {
		_, err := Parse(bad)
		assert.Error(t, err, "input %q", bad)
	}

	for _, c := range All() {
		got, err := Parse(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
}
