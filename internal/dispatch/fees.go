package dispatch

import "math/rand/v2"

// randomFees draws n independent priority fees. With probability percent p
// a fee is uniform in [minFee, maxFee); otherwise it is zero. p == 0 forces
// every fee to zero regardless of the draws.
func randomFees(rng *rand.Rand, probability int, n int, minFee, maxFee uint64) []uint64 {
	fees := make([]uint64, n)
	if probability <= 0 || maxFee <= minFee {
		return fees
	}
	for i := range fees {
		if rng.IntN(100)+1 <= probability {
			fees[i] = minFee + rng.Uint64N(maxFee-minFee)
		}
	}
	return fees
}
