package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBudget_UnderLimit(t *testing.T) {
	b := NewBudget(3, time.Minute)

	require.NoError(t, b.Take("alice", "add-tags"))
	require.NoError(t, b.Take("alice", "add-tags"))
	assert.NoError(t, b.Take("alice", "add-tags"))
}

func TestBudget_ExceedsLimit(t *testing.T) {
	b := NewBudget(2, time.Minute)

	require.NoError(t, b.Take("alice", "add-tags"))
	require.NoError(t, b.Take("alice", "add-tags"))

	err := b.Take("alice", "add-tags")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "budget exceeded")
}

func TestBudget_WindowReset(t *testing.T) {
	b := NewBudget(1, time.Minute)

	now := time.Now()
	b.now = func() time.Time { return now }

	require.NoError(t, b.Take("alice", "undeploy"))
	assert.Error(t, b.Take("alice", "undeploy"))

	// Advance time past window.
	b.now = func() time.Time { return now.Add(2 * time.Minute) }
	assert.NoError(t, b.Take("alice", "undeploy"))
}

func TestBudget_SeparateKeys(t *testing.T) {
	b := NewBudget(1, time.Minute)

	require.NoError(t, b.Take("alice", "undeploy"))
	assert.NoError(t, b.Take("bob", "undeploy"))
	assert.NoError(t, b.Take("alice", "add-tags"))
}

func TestBudget_Disabled(t *testing.T) {
	var nilBudget *Budget
	assert.NoError(t, nilBudget.Take("alice", "undeploy"))

	b := NewBudget(0, time.Minute)
	for range 5 {
		assert.NoError(t, b.Take("alice", "undeploy"))
	}
}
