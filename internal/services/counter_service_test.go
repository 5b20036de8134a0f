package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterSequence(t *testing.T) {
	database := setupTestDB(t, "fieldquote_test_counters")
	counters := NewCounterService(database)
	ctx := context.Background()

	for want := uint64(1); want <= 3; want++ {
		got, err := counters.Next(ctx, "quotation")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestCounterIndependentNames(t *testing.T) {
	database := setupTestDB(t, "fieldquote_test_counters_names")
	counters := NewCounterService(database)
	ctx := context.Background()

	q, err := counters.Next(ctx, "quotation")
	require.NoError(t, err)
	p, err := counters.Next(ctx, "project")
	require.NoError(t, err)

	assert.Equal(t, uint64(1), q)
	assert.Equal(t, uint64(1), p)
}

func TestCounterConcurrentIncrementsAreUnique(t *testing.T) {
	database := setupTestDB(t, "fieldquote_test_counters_concurrent")
	counters := NewCounterService(database)
	ctx := context.Background()

	const n = 20
	results := make(chan uint64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seq, err := counters.Next(ctx, "invoice")
			assert.NoError(t, err)
			results <- seq
		}()
	}
	wg.Wait()
	close(results)

	seen := map[uint64]bool{}
	for seq := range results {
		assert.False(t, seen[seq], "sequence %d handed out twice", seq)
		seen[seq] = true
	}
	assert.Len(t, seen, n)
}
