package kv

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryKV(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, m.Set(ctx, "role:1", "staff", time.Minute))
	require.NoError(t, m.Set(ctx, "role:2", "client", 0))
	require.NoError(t, m.Set(ctx, "other", "x", 0))
	v, err := m.Get(ctx, "role:1")
	require.NoError(t, err)
	assert.Equal(t, "staff", v)

	keys, err := m.ScanKeys(ctx, "role:*")
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{"role:1", "role:2"}, keys)

	require.NoError(t, m.Del(ctx, keys...))
	_, err = m.Get(ctx, "role:2")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemoryKVExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Now()
	m.now = func() time.Time { return now }
	require.NoError(t, m.Set(ctx, "k", "v", time.Second))
	now = now.Add(2 * time.Second)
	_, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}
