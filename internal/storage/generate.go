package storage

import (
	"math/rand"

	"github.com/dreamware/seglookup/internal/cluster"
)

// GenerateConfig describes a synthetic timeline.
type GenerateConfig struct {
	Count       int64 // Number of intervals
	Offset      int64 // Global index of the first interval
	Start       int64 // Start of the first interval
	MinDuration int64 // Shortest interval, inclusive
	MaxDuration int64 // Longest interval, inclusive
	Seed        int64 // Seed for duration sampling
}

// DefaultGenerateConfig mirrors the shard defaults: 100k intervals of 5–10s
// each, in milliseconds.
func DefaultGenerateConfig() GenerateConfig {
	return GenerateConfig{
		Count:       100000,
		MinDuration: 5000,
		MaxDuration: 10000,
		Seed:        1,
	}
}

// Generate returns a gap-free timeline of cfg.Count intervals with durations
// drawn uniformly from [MinDuration, MaxDuration].
// The same config always yields the same timeline.
func Generate(cfg GenerateConfig) []cluster.Interval {
	if cfg.Count <= 0 {
		return nil
	}
	if cfg.MinDuration <= 0 {
		cfg.MinDuration = 1
	}
	if cfg.MaxDuration < cfg.MinDuration {
		cfg.MaxDuration = cfg.MinDuration
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	spread := cfg.MaxDuration - cfg.MinDuration + 1

	out := make([]cluster.Interval, cfg.Count)
	cursor := cfg.Start
	for i := range out {
		d := cfg.MinDuration + rng.Int63n(spread)
		out[i] = cluster.Interval{
			Index:    cfg.Offset + int64(i),
			Start:    cursor,
			End:      cursor + d,
			Duration: d,
		}
		cursor += d
	}
	return out
}
