package qkd

import (
	"math"

	"github.com/entangle-io/qkd/qkd/bitarray"
)

const (
	// securityMarginBits is a fixed safety margin subtracted from the
	// secure output length.
	securityMarginBits = 4

	// hashMixDepth bounds how many pseudo-selected source bits feed each
	// output bit.
	hashMixDepth = 6
)

// eveInfoBB84 estimates adversary information on the prepare-and-measure
// path: reconciliation leakage plus twice the error-rate-scaled raw length.
func eveInfoBB84(leakedBits, rawLen int, qber float64) float64 {
	return float64(leakedBits) + float64(rawLen)*qber*2
}

// eveInfoE91 weights the estimate by how far past the classical bound the
// CHSH statistic landed. A statistic at the quantum bound pins the security
// factor to 1 and charges little beyond reconciliation leakage; at or below
// the classical bound half the raw length is assumed known.
func eveInfoE91(leakedBits, rawLen int, statistic float64) float64 {
	factor := (statistic - chshClassicalBound) / (chshQuantumBound - chshClassicalBound)
	if factor < 0 {
		factor = 0
	}
	if factor > 1 {
		factor = 1
	}
	return float64(leakedBits) + float64(rawLen)*(1-factor)*0.5
}

// secureLength returns the amplified key length: the raw length less the
// ceiling of the adversary-information estimate and the safety margin,
// clamped to [1, requested]. A non-aborting pipeline always emits at least
// one bit.
func secureLength(rawLen, requested int, eveInfo float64) int {
	n := rawLen - int(math.Ceil(eveInfo)) - securityMarginBits
	if n > requested {
		n = requested
	}
	if n < 1 {
		n = 1
	}
	return n
}

// amplify compresses key to outLen bits by a seeded index-mix universal
// hash: output bit i XORs together up to hashMixDepth source bits at
// positions seed*(i+1)*(j+1) mod rawLen. This is a lightweight Toeplitz-hash
// stand-in, not a cryptographically proven extractor. Both parties must
// apply the same seed to their respective keys.
func amplify(key bitarray.Dense, outLen int, seed uint64) bitarray.Dense {
	rawLen := uint64(key.Size())
	if rawLen == 0 || outLen <= 0 {
		return bitarray.Empty()
	}
	if seed == 0 {
		seed = 1
	}
	depth := hashMixDepth
	if int(rawLen) < depth {
		depth = int(rawLen)
	}
	var out bitarray.Dense
	for i := 0; i < outLen; i++ {
		bit := false
		for j := 0; j < depth; j++ {
			idx := seed * uint64(i+1) * uint64(j+1) % rawLen
			if key.Get(int(idx)) {
				bit = !bit
			}
		}
		out.AppendBit(bit)
	}
	return out
}
