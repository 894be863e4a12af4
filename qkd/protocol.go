package qkd

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/entangle-io/qkd/qkd/quantum"
)

// A Phase identifies the protocol controller's position within one attempt.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseExchanging
	PhaseSifting
	PhaseVerifying
	PhaseAborted
	PhaseReconciling
	PhaseAmplifying
	PhaseAuthenticating
	PhaseSucceeded
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseExchanging:
		return "exchanging"
	case PhaseSifting:
		return "sifting"
	case PhaseVerifying:
		return "verifying"
	case PhaseAborted:
		return "aborted"
	case PhaseReconciling:
		return "reconciling"
	case PhaseAmplifying:
		return "amplifying"
	case PhaseAuthenticating:
		return "authenticating"
	case PhaseSucceeded:
		return "succeeded"
	default:
		return "unknown"
	}
}

const (
	// roundSafetyFactor oversizes the exchange so that sifting, sampling,
	// and privacy amplification still leave the requested key length.
	roundSafetyFactor = 2.5

	// defaultSampleProportion is the baseline fraction of sifted bits
	// sacrificed for error estimation, matching security level 2.
	defaultSampleProportion = 0.25

	// minExchangeRounds floors the exchange volume so that small key
	// requests still gather meaningful statistics.
	minExchangeRounds = 64

	// verifyProbeKeyLength sizes the reduced exchange used by
	// VerifyChannel.
	verifyProbeKeyLength = 64
)

// EstimateRounds recommends an initial exchange round count for a
// prepare-and-measure negotiation targeting keyLength final bits at the
// given expected error rate.
func EstimateRounds(keyLength int, expectedErrorRate float64, enhancedSecurity bool) int {
	matchProb := 0.5
	if enhancedSecurity {
		matchProb = 1.0 / 3
	}
	if expectedErrorRate < 0 {
		expectedErrorRate = 0
	}
	if expectedErrorRate > 0.4 {
		expectedErrorRate = 0.4
	}
	usable := matchProb * (1 - defaultSampleProportion) * (1 - 2*expectedErrorRate)
	rounds := int(math.Ceil(float64(keyLength) * roundSafetyFactor / usable))
	if rounds < minExchangeRounds {
		rounds = minExchangeRounds
	}
	return rounds
}

// roundCount sizes one attempt's exchange for this session's configuration.
func (s *Session) roundCount() int {
	var rounds int
	if s.opts.Variant == VariantE91 {
		// Key pairs occupy 2 of the 9 basis combinations.
		rounds = int(math.Ceil(float64(s.opts.KeyLength) * roundSafetyFactor * 4.5 / (1 - s.sampleRate())))
	} else {
		rounds = EstimateRounds(s.opts.KeyLength, s.opts.NoiseRate, s.bases() == 3)
	}
	mult := 1 + 0.25*float64(s.opts.SecurityLevel-1)
	if s.opts.UseDecoyStates {
		mult *= 1.15
	}
	rounds = int(float64(rounds) * mult)
	if rounds < minExchangeRounds {
		rounds = minExchangeRounds
	}
	return rounds
}

// exchangeConfig assembles the quantum-side wiring for one attempt. The
// eavesdropper, when simulated, is rebuilt per attempt: its coherent
// strategy keeps round-to-round state.
func (s *Session) exchangeConfig(rounds int) quantum.ExchangeConfig {
	cfg := quantum.ExchangeConfig{
		Rounds:      rounds,
		Bases:       s.bases(),
		DecoyStates: s.opts.UseDecoyStates,
		Rand:        s.rand,
		Pulse:       s.opts.Pulse,
	}
	if s.opts.Variant == VariantE91 {
		var pairs quantum.PairSource = quantum.NewSinglet(s.rand, s.opts.NoiseRate)
		if s.opts.Eavesdrop {
			eve := quantum.NewEavesdropper(s.opts.EavesdropStrategy, s.rand, s.bases(), s.opts.UseNoiseProtection)
			pairs = eve.TapPairs(pairs)
		}
		cfg.Pairs = pairs
		return cfg
	}
	var ch quantum.Channel = quantum.NewPrepareMeasure(s.rand, s.opts.NoiseRate)
	if s.opts.Eavesdrop {
		eve := quantum.NewEavesdropper(s.opts.EavesdropStrategy, s.rand, s.bases(), s.opts.UseNoiseProtection)
		ch = eve.Tap(ch)
	}
	cfg.Channel = ch
	return cfg
}

// NegotiateKey performs a full key negotiation: exchange, sifting, security
// verification, reconciliation, privacy amplification, and authentication.
// Expected protocol outcomes -- a compromised channel, insufficient
// statistics, retry exhaustion -- are reported in the Result, never as
// errors; the error return is reserved for contract violations.
func (s *Session) NegotiateKey() (*Result, error) {
	var last *Result
	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		res, err := s.attempt(attempt)
		if err == nil {
			res.Attempts = attempt
			if res.Success {
				s.log.Info("negotiation succeeded",
					"attempt", attempt,
					"keyBits", res.KeyBits,
					"errorRate", res.ErrorRate,
					"statistic", res.SecurityParameter)
			} else {
				s.log.Info("negotiation aborted",
					"attempt", attempt,
					"code", res.FailureCode.String(),
					"reason", res.FailureReason)
			}
			return res, nil
		}
		s.log.Error("attempt failed", "attempt", attempt, "error", err)
		if res != nil {
			res.Attempts = attempt
			last = res
		}
	}
	if last == nil {
		last = &Result{FinalPhase: PhaseIdle, Attempts: s.opts.MaxAttempts}
	}
	r := *last
	r.Success = false
	r.FailureCode = FailureRetryExhausted
	r.FailureReason = fmt.Sprintf("all %d attempts failed", s.opts.MaxAttempts)
	return &r, nil
}

// attempt runs one independent pass of the pipeline. A non-nil error marks
// an unexpected attempt failure eligible for retry; the partial Result, when
// present, carries the diagnostics gathered before the failure.
func (s *Session) attempt(attempt int) (*Result, error) {
	b := &resultBuilder{}

	// Exchanging.
	rounds := s.roundCount()
	s.log.Info("exchanging", "attempt", attempt, "rounds", rounds, "variant", s.opts.Variant.String())
	records, err := quantum.Exchange(s.exchangeConfig(rounds))
	if err != nil {
		return b.snapshot(PhaseExchanging), fmt.Errorf("exchanging: %w", err)
	}
	b.setExchange(len(records))

	// Sifting.
	d := newSiftEngine(s.opts.Variant, s.bases(), s.sampleRate(), s.rand).sift(records)
	b.setSifted(d)
	if d.sender.Size() != d.receiver.Size() {
		return b.snapshot(PhaseSifting), errors.New("sifted key halves diverge in length")
	}

	// Verifying.
	v := s.verify(d)
	b.setVerdict(v)
	if v.insufficient {
		return b.fail(FailureInsufficientData,
			"insufficient security-test samples for a verdict",
			PhaseAborted), nil
	}
	if !v.accepted {
		var reason string
		if s.opts.Variant == VariantE91 {
			reason = fmt.Sprintf("CHSH statistic %.4f below threshold %.4f",
				v.statistic, s.opts.SecurityThreshold)
		} else {
			reason = fmt.Sprintf("error rate %.4f exceeds threshold %.4f",
				v.errorRate, s.opts.ErrorThreshold)
		}
		return b.fail(FailureChannelCompromised, reason, PhaseAborted), nil
	}

	// Reconciling.
	rec := reconciler{rand: s.rand}.reconcile(d.sender, d.receiver, v.errorRate)
	b.setReconciled(rec)

	// Amplifying. Both halves compress under the same fresh seed; any
	// residual reconciliation error surfaces as divergence here.
	var eveInfo float64
	if s.opts.Variant == VariantE91 {
		eveInfo = eveInfoE91(rec.leakedBits, rec.corrected.Size(), v.statistic)
	} else {
		eveInfo = eveInfoBB84(rec.leakedBits, rec.corrected.Size(), v.errorRate)
	}
	outLen := secureLength(rec.corrected.Size(), s.opts.KeyLength, eveInfo)
	seed := s.rand.Uint64()
	receiverKey := amplify(rec.corrected, outLen, seed)
	senderKey := amplify(d.sender, outLen, seed)
	if !bytes.Equal(receiverKey.Data(), senderKey.Data()) {
		return b.snapshot(PhaseAmplifying), errors.New("amplified keys diverge after reconciliation")
	}

	// Authenticating.
	tag, err := s.authenticate(receiverKey)
	if err != nil {
		return b.snapshot(PhaseAuthenticating), fmt.Errorf("authenticating: %w", err)
	}
	return b.succeed(receiverKey.Data(), receiverKey.Size(), tag), nil
}

// VerifyChannel runs a reduced exchange and reports whether the channel
// passes security verification, without producing key material. The returned
// statistic is the CHSH value (E91) or the effective QBER (BB84).
func (s *Session) VerifyChannel() (secure bool, statistic, errRate float64, err error) {
	probe := s.opts
	probe.KeyLength = verifyProbeKeyLength
	probe.SecurityLevel = 1
	probe.MaxAttempts = 1
	probe.AuthenticationMode = AuthNone
	probe.PreSharedSecret = nil
	ps, err := NewSession(probe)
	if err != nil {
		return false, 0, 0, fmt.Errorf("building probe session: %w", err)
	}
	records, err := quantum.Exchange(ps.exchangeConfig(ps.roundCount()))
	if err != nil {
		return false, 0, 0, fmt.Errorf("probing channel: %w", err)
	}
	d := newSiftEngine(ps.opts.Variant, ps.bases(), ps.sampleRate(), ps.rand).sift(records)
	v := ps.verify(d)
	s.log.Info("channel probe",
		"secure", v.accepted && !v.insufficient,
		"statistic", v.statistic,
		"errorRate", v.errorRate)
	return v.accepted && !v.insufficient, v.statistic, v.errorRate, nil
}
