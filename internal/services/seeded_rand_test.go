package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeededRand_Reproducible(t *testing.T) {
	ids := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	a := newSeededRand(12345)
	b := newSeededRand(12345)

	assert.Equal(t, a.Sample(ids, 4), b.Sample(ids, 4))
	assert.Equal(t, a.Shuffle(ids), b.Shuffle(ids))
}

func TestSeededRand_DifferentSeedsDiverge(t *testing.T) {
	ids := make([]int, 50)
	for i := range ids {
		ids[i] = i
	}

	a := newSeededRand(1).Shuffle(ids)
	b := newSeededRand(999999).Shuffle(ids)
	assert.NotEqual(t, a, b)
}

func TestSeededRand_SampleWithoutReplacement(t *testing.T) {
	ids := []int{10, 20, 30, 40, 50}
	sample := newSeededRand(7).Sample(ids, 3)

	assert.Len(t, sample, 3)
	seen := make(map[int]bool)
	for _, id := range sample {
		assert.False(t, seen[id], "sample must not repeat elements")
		seen[id] = true
		assert.Contains(t, ids, id)
	}
}

func TestSeededRand_SampleBounds(t *testing.T) {
	ids := []int{1, 2, 3}

	assert.Len(t, newSeededRand(1).Sample(ids, 10), 3)
	assert.Empty(t, newSeededRand(1).Sample(ids, 0))
	assert.Empty(t, newSeededRand(1).Sample(ids, -1))
	assert.Empty(t, newSeededRand(1).Sample(nil, 3))
}

func TestSeededRand_InputNotModified(t *testing.T) {
	ids := []int{1, 2, 3, 4, 5}
	original := []int{1, 2, 3, 4, 5}

	rng := newSeededRand(42)
	rng.Sample(ids, 3)
	rng.Shuffle(ids)

	assert.Equal(t, original, ids)
}

func TestSeededRand_ShufflePermutes(t *testing.T) {
	ids := []int{1, 2, 3, 4, 5, 6, 7, 8}
	shuffled := newSeededRand(99).Shuffle(ids)

	assert.ElementsMatch(t, ids, shuffled)
}

func TestSeededRand_Intn(t *testing.T) {
	rng := newSeededRand(5)
	for i := 0; i < 100; i++ {
		v := rng.Intn(7)
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 7)
	}
	assert.Equal(t, 0, rng.Intn(0))
}
