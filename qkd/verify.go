package qkd

import "math"

const (
	// CHSH bounds: |S| <= 2 classically, |S| <= 2*sqrt(2) for quantum
	// correlations.
	chshClassicalBound = 2.0
	chshQuantumBound   = 2.0 * math.Sqrt2

	// Minimum security-test volumes below which no verdict is issued.
	minCHSHSamples = 10
	minQBERSamples = 8
)

// A verdict is the security verifier's decision for one attempt, computed
// once and immutable.
type verdict struct {
	accepted  bool
	statistic float64

	// errorRate is the effective error rate fed to reconciliation and
	// privacy amplification.
	errorRate      float64
	decoyErrorRate float64

	// insufficient marks verdicts rejected for lack of security-test
	// samples rather than for a bad statistic.
	insufficient bool
}

// verify dispatches to the statistic matching the session's variant.
func (s *Session) verify(d siftedData) verdict {
	if s.opts.Variant == VariantE91 {
		return verifyCHSH(d, s.opts.SecurityThreshold)
	}
	return verifyQBER(d, s.opts.ErrorThreshold)
}

// verifyCHSH combines the four designated basis-pair expectations as
// S = E1 - E2 + E3 + E4 and accepts iff S exceeds the threshold on a
// sufficient sample. Insufficient data is a non-secure verdict with
// statistic 0.
func verifyCHSH(d siftedData, threshold float64) verdict {
	v := verdict{
		errorRate:      errorRate(d.testSender, d.testReceiver),
		decoyErrorRate: d.decoyErrorRate(),
	}
	total := 0
	for _, p := range d.chsh {
		if p.total() == 0 {
			v.insufficient = true
		}
		total += p.total()
	}
	if total < minCHSHSamples {
		v.insufficient = true
	}
	if v.insufficient {
		return v
	}
	v.statistic = d.chsh[0].expectation() -
		d.chsh[1].expectation() +
		d.chsh[2].expectation() +
		d.chsh[3].expectation()
	v.accepted = v.statistic > threshold
	return v
}

// verifyQBER estimates the quantum bit error rate on the sacrificed sample,
// folds in the decoy error rate as a conservative bound, and accepts iff the
// effective rate stays within the threshold. Decoy rounds are excluded from
// the main QBER and only enter through the max.
func verifyQBER(d siftedData, threshold float64) verdict {
	v := verdict{decoyErrorRate: d.decoyErrorRate()}
	if d.testSender.Size() < minQBERSamples {
		v.insufficient = true
		return v
	}
	qber := errorRate(d.testSender, d.testReceiver)
	v.errorRate = math.Max(qber, v.decoyErrorRate)
	v.statistic = v.errorRate
	v.accepted = v.errorRate <= threshold
	return v
}
