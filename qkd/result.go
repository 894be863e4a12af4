package qkd

// A FailureCode classifies why a negotiation produced no key.
type FailureCode int

const (
	// FailureNone marks a successful negotiation.
	FailureNone FailureCode = iota

	// FailureChannelCompromised reports a rejected security verdict: the
	// statistic fell outside its threshold.
	FailureChannelCompromised

	// FailureInsufficientData reports fewer security-test samples than the
	// minimum needed for a verdict.
	FailureInsufficientData

	// FailureRetryExhausted reports maxAttempts consecutive attempt
	// failures; the result carries the last diagnostic snapshot.
	FailureRetryExhausted
)

func (c FailureCode) String() string {
	switch c {
	case FailureNone:
		return "none"
	case FailureChannelCompromised:
		return "channel_compromised"
	case FailureInsufficientData:
		return "insufficient_security_data"
	case FailureRetryExhausted:
		return "retry_exhausted"
	default:
		return "unknown"
	}
}

// A Result is the terminal artifact of one NegotiateKey call. It is created
// exactly once per call and never mutated after construction.
type Result struct {
	// Success reports whether a key was produced.
	Success bool

	// Key holds the final key bits, bit-packed little-endian within each
	// byte; KeyBits is its exact bit length. Empty on failure.
	Key     []byte
	KeyBits int

	// AuthTag is the authentication tag over the final key; nil when the
	// authentication mode is none or on failure.
	AuthTag []byte

	// ErrorRate is the effective observed error rate.
	ErrorRate float64

	// SecurityParameter is the verifier's statistic: the CHSH value for
	// E91, the effective QBER for BB84.
	SecurityParameter float64

	// DecoyErrorRate is the error rate observed on decoy rounds only.
	DecoyErrorRate float64

	// FailureCode and FailureReason describe failures; FailureNone and ""
	// on success.
	FailureCode   FailureCode
	FailureReason string

	// Diagnostics gathered up to the point of success or abort.
	RawBitsExchanged          int
	SiftedBitsCount           int
	BitsUsedForErrorDetection int
	DroppedRounds             int
	LeakedBits                int
	ReconciliationSkipped     bool
	Attempts                  int
	FinalPhase                Phase
}

// A resultBuilder accumulates diagnostics while phases run. Results leave
// the builder immutable.
type resultBuilder struct {
	r Result
}

func (b *resultBuilder) setExchange(rounds int) {
	b.r.RawBitsExchanged = rounds
}

func (b *resultBuilder) setSifted(d siftedData) {
	b.r.SiftedBitsCount = d.sender.Size()
	b.r.BitsUsedForErrorDetection = d.testedBits()
	b.r.DroppedRounds = d.dropped
}

func (b *resultBuilder) setVerdict(v verdict) {
	b.r.ErrorRate = v.errorRate
	b.r.SecurityParameter = v.statistic
	b.r.DecoyErrorRate = v.decoyErrorRate
}

func (b *resultBuilder) setReconciled(out reconcileOutcome) {
	b.r.LeakedBits = out.leakedBits
	b.r.ReconciliationSkipped = out.skipped
}

// snapshot returns the diagnostics gathered so far, marked failed at phase.
func (b *resultBuilder) snapshot(phase Phase) *Result {
	r := b.r
	r.Success = false
	r.FinalPhase = phase
	return &r
}

func (b *resultBuilder) fail(code FailureCode, reason string, phase Phase) *Result {
	r := b.r
	r.Success = false
	r.FailureCode = code
	r.FailureReason = reason
	r.FinalPhase = phase
	return &r
}

func (b *resultBuilder) succeed(key []byte, keyBits int, tag []byte) *Result {
	r := b.r
	r.Success = true
	r.Key = key
	r.KeyBits = keyBits
	r.AuthTag = tag
	r.FinalPhase = PhaseSucceeded
	return &r
}
