package quantum

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/entangle-io/qkd/qkd/rng"
)

// A PrepareMeasure channel transmits individually prepared qubits, as in
// BB84-style protocols. Matching bases return the prepared bit, flipped with
// probability NoiseRate; mismatched bases return an unbiased coin flip.
type PrepareMeasure struct {
	src       rng.Source
	noiseRate float64
	noise     distuv.Bernoulli
}

// NewPrepareMeasure returns a prepare-and-measure channel drawing from src
// with the given matched-basis flip probability.
func NewPrepareMeasure(src rng.Source, noiseRate float64) *PrepareMeasure {
	return &PrepareMeasure{
		src:       src,
		noiseRate: noiseRate,
		noise:     distuv.Bernoulli{P: noiseRate, Src: rng.ExpSource(src)},
	}
}

// Measure implements the Channel interface.
func (c *PrepareMeasure) Measure(bit bool, prepBasis, measBasis Basis) bool {
	if prepBasis != measBasis {
		return c.src.Bit()
	}
	if c.noiseRate > 0 && c.noise.Rand() == 1 {
		return !bit
	}
	return bit
}

// singletCorr holds the expectation value E = P(agree) - P(disagree) for each
// (sender, receiver) analyzer pair of the simulated singlet state. Equal-index
// key pairs are perfectly anti-correlated; the four designated CHSH pairs sit
// at the quantum bound 1/sqrt(2), with signs arranged so that
// S = E1 - E2 + E3 + E4 reaches 2*sqrt(2) on an undisturbed channel. All other
// combinations are uncorrelated and discarded during sifting.
var singletCorr = [NumBases][NumBases]float64{
	BasisRectilinear: {
		BasisRectilinear: -1,
		BasisDiagonal:    math.Sqrt2 / 2,
	},
	BasisDiagonal: {
		BasisRectilinear: -math.Sqrt2 / 2,
		BasisCircular:    math.Sqrt2 / 2,
	},
	BasisCircular: {
		BasisDiagonal: math.Sqrt2 / 2,
		BasisCircular: -1,
	},
}

// CHSHPairs enumerates the four (senderBasis, receiverBasis) combinations
// whose correlations enter the CHSH statistic, in S = E1 - E2 + E3 + E4
// order.
var CHSHPairs = [4][2]Basis{
	{BasisRectilinear, BasisDiagonal},
	{BasisDiagonal, BasisRectilinear},
	{BasisDiagonal, BasisCircular},
	{BasisCircular, BasisDiagonal},
}

// PairCorrelation returns the undisturbed expectation value for a basis pair.
func PairCorrelation(senderBasis, receiverBasis Basis) float64 {
	return singletCorr[senderBasis][receiverBasis]
}

// A Singlet is a PairSource emitting anti-correlated entangled pairs, as in
// E91. Channel noise flips the receiver's outcome with probability NoiseRate,
// attenuating every correlation by a factor (1 - 2*NoiseRate).
type Singlet struct {
	src       rng.Source
	noiseRate float64
	noise     distuv.Bernoulli
}

// NewSinglet returns an entangled-pair source drawing from src with the given
// receiver-side flip probability.
func NewSinglet(src rng.Source, noiseRate float64) *Singlet {
	return &Singlet{
		src:       src,
		noiseRate: noiseRate,
		noise:     distuv.Bernoulli{P: noiseRate, Src: rng.ExpSource(src)},
	}
}

// MeasurePair implements the PairSource interface.
func (s *Singlet) MeasurePair(senderBasis, receiverBasis Basis) (bool, bool) {
	e := singletCorr[senderBasis][receiverBasis]
	senderBit := s.src.Bit()
	agree := s.src.Float64() < (1+e)/2
	receiverBit := senderBit
	if !agree {
		receiverBit = !senderBit
	}
	if s.noiseRate > 0 && s.noise.Rand() == 1 {
		receiverBit = !receiverBit
	}
	return senderBit, receiverBit
}

// PulseAttrs describes the photon-number statistics of the simulated source.
// The zero value models an ideal single-photon source that never misfires.
type PulseAttrs struct {
	// MuSignal is the mean photon number of signal pulses. Zero disables
	// pulse simulation for signal rounds.
	MuSignal float64

	// MuDecoy is the mean photon number of decoy pulses. Zero disables
	// pulse simulation for decoy rounds.
	MuDecoy float64
}

func (p PulseAttrs) enabled() bool {
	return p.MuSignal > 0 || p.MuDecoy > 0
}
