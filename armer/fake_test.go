package armer

import "math/rand"

// deterministicRand returns a seeded *rand.Rand for tests that need
// reproducible random launch-distance picks.
func deterministicRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}
