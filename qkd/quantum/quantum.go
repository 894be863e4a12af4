// Package quantum models the simulated quantum side of a key distribution
// exchange: basis choices, qubit preparation and measurement, entangled-pair
// creation, eavesdropper interference, and round orchestration.
//
// The channel is an intentionally simplified probabilistic stand-in for full
// quantum-state evolution. Matching bases reproduce the prepared bit exactly,
// modulo configured noise; mismatched bases behave as unbiased coin flips
// (the average over bases spaced at fixed angles); entangled-pair statistics
// follow a fixed per-basis-pair correlation table. It is not a state-vector
// simulator.
package quantum

// A Basis identifies the measurement basis chosen for one round.
type Basis uint8

const (
	// BasisRectilinear is the computational basis.
	BasisRectilinear Basis = iota
	// BasisDiagonal is offset 45 degrees from rectilinear.
	BasisDiagonal
	// BasisCircular is the third basis used by 3-basis encodings.
	BasisCircular

	// NumBases is the number of defined bases.
	NumBases = 3
)

func (b Basis) String() string {
	switch b {
	case BasisRectilinear:
		return "rectilinear"
	case BasisDiagonal:
		return "diagonal"
	case BasisCircular:
		return "circular"
	default:
		return "unknown"
	}
}

// A RoundRecord captures everything observed about one exchange round. It is
// produced once by Exchange and read-only thereafter.
type RoundRecord struct {
	SenderBasis   Basis
	ReceiverBasis Basis
	SenderBit     bool
	ReceiverBit   bool
	IsDecoy       bool

	// Dropped marks rounds where the pulse produced no detection at the
	// receiver. Dropped rounds never contribute key or test material.
	Dropped bool
}

// A Channel simulates one round of qubit preparation and measurement.
type Channel interface {
	// Measure returns the receiver's measurement of a qubit prepared as bit
	// in prepBasis and measured in measBasis.
	Measure(bit bool, prepBasis, measBasis Basis) bool
}

// A PairSource creates one entangled pair per call and returns both parties'
// measurement outcomes for the chosen analyzer bases.
type PairSource interface {
	MeasurePair(senderBasis, receiverBasis Basis) (senderBit, receiverBit bool)
}
