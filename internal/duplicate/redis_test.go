package duplicate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicfix/verification-service/pkg/phash"
)

func newTestRedisIndex(t *testing.T) *RedisIndex {
	t.Helper()
	srv := miniredis.RunT(t)
	ix, err := NewRedisIndex("redis://"+srv.Addr(), 0.85)
	require.NoError(t, err)
	return ix
}

func TestRedisExactDuplicateAcrossIssues(t *testing.T) {
	ix := newTestRedisIndex(t)
	ctx := context.Background()
	fp := fingerprint(42)

	m, err := ix.CheckAndInsert(ctx, fp, 1)
	require.NoError(t, err)
	assert.False(t, m.Found)

	m, err = ix.CheckAndInsert(ctx, fp, 2)
	require.NoError(t, err)
	assert.True(t, m.Found)
	assert.Equal(t, int64(1), m.IssueID)
	assert.Equal(t, 1.0, m.Similarity)
}

func TestRedisSelfMatchExcluded(t *testing.T) {
	ix := newTestRedisIndex(t)
	ctx := context.Background()
	fp := fingerprint(7)

	_, err := ix.CheckAndInsert(ctx, fp, 5)
	require.NoError(t, err)

	m, err := ix.CheckAndInsert(ctx, fp, 5)
	require.NoError(t, err)
	assert.False(t, m.Found)

	n, err := ix.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRedisConcurrentIdenticalSubmissions(t *testing.T) {
	// Two concurrent submissions of a perceptually identical image must not
	// both observe "no duplicate".
	ix := newTestRedisIndex(t)
	ctx := context.Background()
	fp := fingerprint(77)

	const n = 16
	var wg sync.WaitGroup
	hits := make(chan bool, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(issue int64) {
			defer wg.Done()
			m, err := ix.CheckAndInsert(ctx, fp, issue)
			assert.NoError(t, err)
			hits <- m.Found
		}(int64(i + 1))
	}
	wg.Wait()
	close(hits)

	misses := 0
	for found := range hits {
		if !found {
			misses++
		}
	}
	assert.Equal(t, 1, misses, "exactly one submission may win the insert")
}

func TestRedisPrune(t *testing.T) {
	ix := newTestRedisIndex(t)
	ctx := context.Background()

	_, err := ix.CheckAndInsert(ctx, fingerprint(1), 1)
	require.NoError(t, err)
	_, err = ix.CheckAndInsert(ctx, phash.Fingerprint{^uint64(0), 0, ^uint64(0), 0}, 2)
	require.NoError(t, err)

	// Nothing predates a cutoff in the past.
	removed, err := ix.Prune(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, removed)

	// Everything predates a cutoff in the future.
	removed, err = ix.Prune(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	n, err := ix.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
