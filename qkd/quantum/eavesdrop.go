package quantum

import "github.com/entangle-io/qkd/qkd/rng"

// A Strategy selects the simulated attack applied to intercepted rounds.
type Strategy int

const (
	// StrategyInterceptResend measures each qubit in a random basis and
	// re-prepares it, which introduces a 25% error on matched-basis rounds
	// of a 2-basis protocol.
	StrategyInterceptResend Strategy = iota

	// StrategyCollective leaks a bounded amount of basis-independent
	// information at a fixed disturbance probability.
	StrategyCollective

	// StrategyCoherent correlates its disturbance across adjacent rounds,
	// disturbing less when the sender repeats a basis.
	StrategyCoherent
)

func (s Strategy) String() string {
	switch s {
	case StrategyInterceptResend:
		return "intercept-resend"
	case StrategyCollective:
		return "collective"
	case StrategyCoherent:
		return "coherent"
	default:
		return "unknown"
	}
}

const (
	// CollectiveDisturbance is the fixed flip probability of the collective
	// strategy.
	CollectiveDisturbance = 0.1

	// Coherent-strategy flip probabilities, conditioned on whether the
	// sender's basis repeats the previous round's.
	coherentMatched   = 0.05
	coherentUnmatched = 0.25

	// interceptPairDisturbance is the receiver-side flip probability an
	// intercept-resend attack induces on an entangled pair; it halves every
	// pair correlation, collapsing the CHSH statistic below the classical
	// bound's neighborhood.
	interceptPairDisturbance = 0.25
)

// An Eavesdropper perturbs channel rounds before the receiver's measurement.
// It is deterministic given a fixed randomness stream. The same Eavesdropper
// must not tap more than one channel at a time: the coherent strategy keeps
// per-round state.
type Eavesdropper struct {
	strategy Strategy
	src      rng.Source
	bases    int

	// phaseRandomized indicates the sender applies a randomized phase
	// before transmission (noise protection), which breaks the coherent
	// strategy's round-to-round correlation.
	phaseRandomized bool

	prevBasis Basis
	havePrev  bool

	// Intercepts counts the rounds this eavesdropper has touched.
	Intercepts int
}

// NewEavesdropper returns an eavesdropper applying the given strategy, using
// src for its own basis and disturbance draws. bases is the number of bases
// in play (2 or 3). phaseRandomized reflects the sender's noise protection.
func NewEavesdropper(strategy Strategy, src rng.Source, bases int, phaseRandomized bool) *Eavesdropper {
	return &Eavesdropper{
		strategy:        strategy,
		src:             src,
		bases:           bases,
		phaseRandomized: phaseRandomized,
	}
}

// Tap wraps a prepare-and-measure channel so that every round passes through
// the eavesdropper before the receiver measures.
func (e *Eavesdropper) Tap(inner Channel) Channel {
	return &tappedChannel{inner: inner, eve: e}
}

// TapPairs wraps an entangled-pair source so that the receiver's arm of every
// pair passes through the eavesdropper.
func (e *Eavesdropper) TapPairs(inner PairSource) PairSource {
	return &tappedPair{inner: inner, eve: e}
}

type tappedChannel struct {
	inner Channel
	eve   *Eavesdropper
}

func (t *tappedChannel) Measure(bit bool, prepBasis, measBasis Basis) bool {
	e := t.eve
	e.Intercepts++
	switch e.strategy {
	case StrategyInterceptResend:
		eveBasis := Basis(e.src.IntN(e.bases))
		stolen := t.inner.Measure(bit, prepBasis, eveBasis)
		return t.inner.Measure(stolen, eveBasis, measBasis)
	case StrategyCollective:
		out := t.inner.Measure(bit, prepBasis, measBasis)
		if e.src.Float64() < CollectiveDisturbance {
			out = !out
		}
		return out
	case StrategyCoherent:
		out := t.inner.Measure(bit, prepBasis, measBasis)
		if e.src.Float64() < e.coherentRate(prepBasis) {
			out = !out
		}
		return out
	default:
		return t.inner.Measure(bit, prepBasis, measBasis)
	}
}

type tappedPair struct {
	inner PairSource
	eve   *Eavesdropper
}

func (t *tappedPair) MeasurePair(senderBasis, receiverBasis Basis) (bool, bool) {
	e := t.eve
	e.Intercepts++
	senderBit, receiverBit := t.inner.MeasurePair(senderBasis, receiverBasis)
	var p float64
	switch e.strategy {
	case StrategyInterceptResend:
		p = interceptPairDisturbance
	case StrategyCollective:
		p = CollectiveDisturbance
	case StrategyCoherent:
		p = e.coherentRate(senderBasis)
	}
	if e.src.Float64() < p {
		receiverBit = !receiverBit
	}
	return senderBit, receiverBit
}

// coherentRate returns the coherent strategy's flip probability for a round
// prepared in basis, updating the adjacent-round tracking state.
func (e *Eavesdropper) coherentRate(basis Basis) float64 {
	matched := e.havePrev && e.prevBasis == basis && !e.phaseRandomized
	e.prevBasis, e.havePrev = basis, true
	if matched {
		return coherentMatched
	}
	return coherentUnmatched
}
