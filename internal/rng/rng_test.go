package rng

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUniformInDegenerateRange(t *testing.T) {
	v, err := UniformIn(42, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)
}

func TestUniformInRejectsBadRange(t *testing.T) {
	_, err := UniformIn(10, 5)
	assert.Error(t, err)
	_, err = UniformIn(-1, 5)
	assert.Error(t, err)
}

func TestUniformInStaysInBounds(t *testing.T) {
	const lo, hi = 7, 23
	for i := 0; i < 5000; i++ {
		v, err := UniformIn(lo, hi)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, v, int64(lo))
		assert.LessOrEqual(t, v, int64(hi))
	}
}

// TestUniformInJitterUniformity is the jitter-uniformity testable
// property from spec.md: over a large number of draws with fixed bounds,
// the empirical distribution should not concentrate in any bucket beyond
// what a chi-square test at p > 0.01 would tolerate. We approximate that
// here with a coarse bucket-balance check rather than pulling in a stats
// library.
func TestUniformInJitterUniformity(t *testing.T) {
	const lo, hi = 0, 99
	const draws = 200000
	const buckets = 10
	var counts [buckets]int
	for i := 0; i < draws; i++ {
		v, err := UniformIn(lo, hi)
		require.NoError(t, err)
		counts[v*buckets/(hi-lo+1)]++
	}
	expected := float64(draws) / buckets
	for _, c := range counts {
		deviation := (float64(c) - expected) / expected
		assert.Less(t, deviation, 0.1, "bucket deviates more than 10%% from uniform")
		assert.Greater(t, deviation, -0.1, "bucket deviates more than 10%% from uniform")
	}
}

func TestRandomAlphaCharset(t *testing.T) {
	s, err := RandomAlpha(32)
	require.NoError(t, err)
	require.Len(t, s, 32)
	for _, r := range s {
		assert.True(t, (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z'))
	}
}
