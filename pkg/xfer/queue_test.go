package xfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandQueueDiscardsBytesAfterNulInSamePayload(t *testing.T) {
	q := NewCommandQueue()
	q.Feed([]byte("SY\x00RN2\x00"))
	require.Equal(t, 1, q.Len())

	cmd, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "SY", string(cmd))

	_, ok = q.Pop()
	assert.False(t, ok)

	// The discarded "RN2\x00" must not surface as a queued command, nor
	// linger as a partial that a later Feed call completes.
	q.Feed([]byte("X\x00"))
	cmd, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, "X", string(cmd))
}

func TestCommandQueueReassemblesSplitAcrossFeeds(t *testing.T) {
	q := NewCommandQueue()
	q.Feed([]byte("S foo "))
	assert.Equal(t, 0, q.Len())
	q.Feed([]byte("bar -C D.0 0644\x00"))
	require.Equal(t, 1, q.Len())

	cmd, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "S foo bar -C D.0 0644", string(cmd))
}

func TestCommandQueueKeepsPartialUntilItsOwnNul(t *testing.T) {
	q := NewCommandQueue()
	q.Feed([]byte("HY\x00"))
	require.Equal(t, 1, q.Len())
	cmd, _ := q.Pop()
	assert.Equal(t, "HY", string(cmd))

	// A fresh payload with no NUL starts a new partial command.
	q.Feed([]byte("H"))
	assert.Equal(t, 0, q.Len())

	q.Feed([]byte("\x00"))
	cmd, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "H", string(cmd))
}
