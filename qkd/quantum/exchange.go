package quantum

import (
	"errors"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/entangle-io/qkd/qkd/rng"
)

// DecoyProbability is the Bernoulli rate at which rounds are flagged as
// decoys when decoy states are enabled.
const DecoyProbability = 0.1

// An ExchangeConfig parameterizes one orchestrated run of exchange rounds.
type ExchangeConfig struct {
	// Rounds is the number of rounds to drive.
	Rounds int

	// Bases is the number of bases each party chooses from (2 or 3).
	Bases int

	// DecoyStates marks rounds as decoys with probability DecoyProbability.
	DecoyStates bool

	// Rand supplies basis, bit, and decoy draws. Must be non-nil.
	Rand rng.Source

	// Channel carries prepare-and-measure rounds. Exactly one of Channel
	// and Pairs must be non-nil.
	Channel Channel

	// Pairs carries entangled rounds.
	Pairs PairSource

	// Pulse describes the photon source; the zero value is an ideal source.
	Pulse PulseAttrs
}

// Exchange drives cfg.Rounds independent rounds, recording each party's basis
// choice and bit. Rounds have no cross-round dependency; generation is pure
// and carries no retry logic.
func Exchange(cfg ExchangeConfig) ([]RoundRecord, error) {
	if (cfg.Channel == nil) == (cfg.Pairs == nil) {
		return nil, errors.New("exactly one of {Channel, Pairs} must be specified")
	}
	if cfg.Rand == nil {
		return nil, errors.New("must provide Rand")
	}
	if cfg.Rounds <= 0 {
		return nil, errors.New("round count must be positive")
	}
	if cfg.Bases < 2 || cfg.Bases > NumBases {
		return nil, errors.New("basis count must be 2 or 3")
	}

	decoy := distuv.Bernoulli{P: DecoyProbability, Src: rng.ExpSource(cfg.Rand)}
	signalPulse := distuv.Poisson{Lambda: cfg.Pulse.MuSignal, Src: rng.ExpSource(cfg.Rand)}
	decoyPulse := distuv.Poisson{Lambda: cfg.Pulse.MuDecoy, Src: rng.ExpSource(cfg.Rand)}

	records := make([]RoundRecord, 0, cfg.Rounds)
	for i := 0; i < cfg.Rounds; i++ {
		rec := RoundRecord{
			SenderBasis:   Basis(cfg.Rand.IntN(cfg.Bases)),
			ReceiverBasis: Basis(cfg.Rand.IntN(cfg.Bases)),
		}
		if cfg.DecoyStates && decoy.Rand() == 1 {
			rec.IsDecoy = true
		}
		if cfg.Pairs != nil {
			rec.SenderBit, rec.ReceiverBit = cfg.Pairs.MeasurePair(rec.SenderBasis, rec.ReceiverBasis)
			records = append(records, rec)
			continue
		}

		rec.SenderBit = cfg.Rand.Bit()
		if cfg.Pulse.enabled() {
			pulse := signalPulse
			if rec.IsDecoy {
				pulse = decoyPulse
			}
			if pulse.Lambda > 0 && pulse.Rand() == 0 {
				// No photon reached the detector this round.
				rec.Dropped = true
				records = append(records, rec)
				continue
			}
		}
		rec.ReceiverBit = cfg.Channel.Measure(rec.SenderBit, rec.SenderBasis, rec.ReceiverBasis)
		records = append(records, rec)
	}
	return records, nil
}
