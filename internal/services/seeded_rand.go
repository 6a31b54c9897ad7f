package services

// seededRand is a small linear-congruential generator used for reproducible
// question selection. The recurrence and the seed derivation are fixed:
// changing either silently changes every regenerated quiz, so treat them as
// part of the stored-data contract.
type seededRand struct {
	state uint32
}

// newSeededRand creates a generator from a non-negative seed.
func newSeededRand(seed int64) *seededRand {
	return &seededRand{state: uint32(seed)}
}

// next advances the LCG one step and returns the new state.
func (r *seededRand) next() uint32 {
	r.state = r.state*1664525 + 1013904223
	return r.state
}

// Intn returns a deterministic value in [0, n). n must be > 0.
func (r *seededRand) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(r.next() % uint32(n))
}

// Sample picks k elements from ids without replacement. The input slice is not
// modified. If k >= len(ids) a shuffled copy of the whole input is returned.
func (r *seededRand) Sample(ids []int, k int) []int {
	if k < 0 {
		k = 0
	}
	pool := make([]int, len(ids))
	copy(pool, ids)
	if k > len(pool) {
		k = len(pool)
	}

	// Partial Fisher-Yates: the first k positions are the sample.
	for i := 0; i < k; i++ {
		j := i + r.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:k]
}

// Shuffle returns a deterministically shuffled copy of ids (Fisher-Yates).
func (r *seededRand) Shuffle(ids []int) []int {
	out := make([]int, len(ids))
	copy(out, ids)
	for i := len(out) - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}
