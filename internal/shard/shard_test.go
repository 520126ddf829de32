package shard

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/seglookup/internal/cluster"
	"github.com/dreamware/seglookup/internal/storage"
)

func newTestShard(t *testing.T, id int, cfg storage.GenerateConfig) *Shard {
	t.Helper()
	store, err := storage.NewMemoryStore(storage.Generate(cfg))
	require.NoError(t, err)
	s, err := NewShard(id, store)
	require.NoError(t, err)
	return s
}

// TestNewShard tests shard creation
func TestNewShard(t *testing.T) {
	tests := []struct {
		name       string
		id         int
		offset     int64
		wantOffset int64
	}{
		{name: "first shard", id: 0, offset: 0, wantOffset: 0},
		{name: "second shard", id: 1, offset: 100, wantOffset: 100},
		{name: "shard with large ID", id: 999999, offset: 1 << 33, wantOffset: 1 << 33},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestShard(t, tt.id, storage.GenerateConfig{Count: 100, Offset: tt.offset, MinDuration: 5, MaxDuration: 9})

			assert.Equal(t, tt.id, s.ID)
			assert.Equal(t, tt.wantOffset, s.Offset)
			assert.NotNil(t, s.Store)
			assert.NotNil(t, s.Stats)
		})
	}
}

// TestNewShardEmptyStore verifies an empty store is a configuration error
func TestNewShardEmptyStore(t *testing.T) {
	_, err := NewShard(0, nil)
	assert.ErrorIs(t, err, storage.ErrEmptyStore)
}

// TestRangeSummary tests the aggregate boundary report
func TestRangeSummary(t *testing.T) {
	cfg := storage.GenerateConfig{Count: 250, Offset: 500, Start: 1000, MinDuration: 5, MaxDuration: 10, Seed: 3}
	s := newTestShard(t, 2, cfg)
	ivs := storage.Generate(cfg)

	rs := s.RangeSummary()
	assert.Equal(t, cluster.RangeSummary{
		ShardID: 2,
		Start:   1000,
		End:     ivs[len(ivs)-1].End,
		Length:  250,
		Offset:  500,
	}, rs)
	assert.NoError(t, rs.Validate())
	assert.Equal(t, uint64(1), s.GetStats().Summaries)
}

// TestLookupByIndex tests point lookups by global index
func TestLookupByIndex(t *testing.T) {
	s := newTestShard(t, 1, storage.GenerateConfig{Count: 10, Offset: 10, MinDuration: 5, MaxDuration: 10})

	t.Run("every held index resolves", func(t *testing.T) {
		for i := int64(10); i < 20; i++ {
			iv, err := s.LookupByIndex(i)
			require.NoError(t, err)
			assert.Equal(t, i, iv.Index)
		}
	})

	t.Run("gap-free across consecutive indices", func(t *testing.T) {
		for i := int64(10); i < 19; i++ {
			a, _ := s.LookupByIndex(i)
			b, _ := s.LookupByIndex(i + 1)
			assert.Equal(t, a.End, b.Start)
		}
	})

	t.Run("indices outside the shard", func(t *testing.T) {
		for _, i := range []int64{-1, 0, 9, 20, 1 << 40} {
			_, err := s.LookupByIndex(i)
			assert.True(t, errors.Is(err, ErrIndexOutOfRange), "index %d: %v", i, err)
		}
	})

	stats := s.GetStats()
	assert.Equal(t, uint64(10+18+5), stats.Lookups)
	assert.Equal(t, uint64(5), stats.Misses)
}

// TestConcurrentLookups verifies unlimited concurrent readers
func TestConcurrentLookups(t *testing.T) {
	s := newTestShard(t, 0, storage.GenerateConfig{Count: 1000, MinDuration: 5, MaxDuration: 10})

	var wg sync.WaitGroup
	for g := 0; g < 20; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := int64(0); i < 1000; i++ {
				if _, err := s.LookupByIndex(i); err != nil {
					t.Errorf("lookup %d: %v", i, err)
					return
				}
			}
			s.RangeSummary()
		}()
	}
	wg.Wait()

	stats := s.GetStats()
	assert.Equal(t, uint64(20000), stats.Lookups)
	assert.Equal(t, uint64(20), stats.Summaries)
	assert.Zero(t, stats.Misses)
}

// TestInfo verifies Info does not count as a summary request
func TestInfo(t *testing.T) {
	s := newTestShard(t, 4, storage.GenerateConfig{Count: 5, MinDuration: 1, MaxDuration: 1})
	info := s.Info()
	assert.Equal(t, 4, info.ID)
	assert.Equal(t, int64(5), info.Range.Length)
	assert.Equal(t, int64(5), info.Range.End)
	assert.Zero(t, s.GetStats().Summaries)
}
