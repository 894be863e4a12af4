package quantum

import (
	"testing"

	"github.com/entangle-io/qkd/qkd/rng"
)

func TestStrategyString(t *testing.T) {
	tcs := []struct {
		s    Strategy
		want string
	}{
		{StrategyInterceptResend, "intercept-resend"},
		{StrategyCollective, "collective"},
		{StrategyCoherent, "coherent"},
		{Strategy(99), "unknown"},
	}
	for _, tc := range tcs {
		if got := tc.s.String(); got != tc.want {
			t.Errorf("Strategy(%d).String() == %q, want %q", tc.s, got, tc.want)
		}
	}
}

func TestInterceptResendErrorRate(t *testing.T) {
	// A random-basis intercept on a 2-basis channel corrupts matched-basis
	// rounds 25% of the time: half the intercepts pick the wrong basis, and
	// those rounds decohere to a coin flip.
	src := rng.NewSeeded(7)
	eve := NewEavesdropper(StrategyInterceptResend, src, 2, false)
	ch := eve.Tap(NewPrepareMeasure(src, 0))

	const rounds = 4000
	errs := 0
	for i := 0; i < rounds; i++ {
		bit := src.Bit()
		basis := Basis(src.IntN(2))
		if ch.Measure(bit, basis, basis) != bit {
			errs++
		}
	}
	rate := float64(errs) / rounds
	if rate < 0.18 || rate > 0.32 {
		t.Errorf("intercept-resend error rate == %f, want ~0.25", rate)
	}
	if eve.Intercepts != rounds {
		t.Errorf("Intercepts == %d, want %d", eve.Intercepts, rounds)
	}
}

func TestCollectiveTap(t *testing.T) {
	src := &rng.Scripted{Floats: []float64{0.05, 0.5}}
	eve := NewEavesdropper(StrategyCollective, src, 2, false)
	ch := eve.Tap(NewPrepareMeasure(&rng.Scripted{}, 0))

	// First draw lands under the disturbance probability and flips.
	if got := ch.Measure(true, BasisRectilinear, BasisRectilinear); got {
		t.Error("disturbed round preserved the bit, want flip")
	}
	// Second draw lands above it and passes through.
	if got := ch.Measure(true, BasisRectilinear, BasisRectilinear); !got {
		t.Error("undisturbed round flipped the bit")
	}
}

func TestCoherentRate(t *testing.T) {
	e := NewEavesdropper(StrategyCoherent, &rng.Scripted{}, 2, false)
	if got := e.coherentRate(BasisRectilinear); got != coherentUnmatched {
		t.Errorf("first-round rate == %f, want %f", got, coherentUnmatched)
	}
	if got := e.coherentRate(BasisRectilinear); got != coherentMatched {
		t.Errorf("repeated-basis rate == %f, want %f", got, coherentMatched)
	}
	if got := e.coherentRate(BasisDiagonal); got != coherentUnmatched {
		t.Errorf("changed-basis rate == %f, want %f", got, coherentUnmatched)
	}
	if got := e.coherentRate(BasisDiagonal); got != coherentMatched {
		t.Errorf("repeated-basis rate == %f, want %f", got, coherentMatched)
	}
}

func TestCoherentRatePhaseRandomized(t *testing.T) {
	// Noise protection removes the repeated-basis advantage.
	e := NewEavesdropper(StrategyCoherent, &rng.Scripted{}, 2, true)
	for i := 0; i < 4; i++ {
		if got := e.coherentRate(BasisRectilinear); got != coherentUnmatched {
			t.Fatalf("phase-randomized rate %d == %f, want %f", i, got, coherentUnmatched)
		}
	}
}

func TestTapPairsInterceptHalvesCorrelation(t *testing.T) {
	src := rng.NewSeeded(11)
	eve := NewEavesdropper(StrategyInterceptResend, src, 3, false)
	pairs := eve.TapPairs(NewSinglet(src, 0))

	const rounds = 4000
	agree := 0
	for i := 0; i < rounds; i++ {
		sb, rb := pairs.MeasurePair(BasisRectilinear, BasisRectilinear)
		if sb == rb {
			agree++
		}
	}
	// Undisturbed E == -1; a 25% flip rate attenuates it to -0.5.
	e := float64(2*agree-rounds) / rounds
	if e < -0.6 || e > -0.4 {
		t.Errorf("tapped key-pair correlation == %f, want ~-0.5", e)
	}
}
