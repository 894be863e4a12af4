// Package qkd implements a simulated quantum key distribution pipeline with
// two protocol variants: an entanglement-based scheme (E91) certified by the
// CHSH inequality, and a prepare-and-measure scheme (BB84, optionally
// 3-basis) certified by the quantum bit error rate. Two parties derive a
// shared secret bit string over a simulated quantum channel; eavesdropping is
// detected statistically before the raw material is error-corrected,
// privacy-amplified, and authenticated.
//
// The channel model is probabilistic, not a quantum-state simulator, and the
// post-processing primitives are protocol-shaped stand-ins rather than proven
// cryptographic constructions.
package qkd

import (
	"errors"
	"fmt"
	"io"

	"github.com/luxfi/log"

	"github.com/entangle-io/qkd/qkd/bitarray"
	"github.com/entangle-io/qkd/qkd/quantum"
	"github.com/entangle-io/qkd/qkd/rng"
)

// A Variant selects the protocol family.
type Variant int

const (
	// VariantBB84 is the prepare-and-measure scheme.
	VariantBB84 Variant = iota
	// VariantE91 is the entanglement-based scheme.
	VariantE91
)

func (v Variant) String() string {
	switch v {
	case VariantBB84:
		return "bb84"
	case VariantE91:
		return "e91"
	default:
		return "unknown"
	}
}

// An AuthMode selects how the final key is authenticated.
type AuthMode int

const (
	// AuthNone produces no authentication tag.
	AuthNone AuthMode = iota
	// AuthPreShared tags the key with the pre-shared-secret universal hash.
	AuthPreShared
	// AuthEnhanced tags the key with keyed BLAKE3 under an HKDF-derived
	// subkey of the pre-shared secret.
	AuthEnhanced
)

func (m AuthMode) String() string {
	switch m {
	case AuthNone:
		return "none"
	case AuthPreShared:
		return "preshared"
	case AuthEnhanced:
		return "enhanced"
	default:
		return "unknown"
	}
}

// Defaults applied by NewSession for zero-valued options.
var (
	DefaultKeyLength         = 128
	DefaultSecurityLevel     = 2
	DefaultSecurityThreshold = 2.2
	DefaultErrorThreshold    = 0.12
	DefaultMaxAttempts       = 3
)

// Options configures a Session. Every field is independently overridable;
// zero values take the package defaults.
type Options struct {
	// Variant selects E91 or BB84 semantics.
	Variant Variant

	// KeyLength is the target final key length in bits. Must be at least 8.
	KeyLength int

	// SecurityLevel (1-5) scales exchange volume and the share of sifted
	// bits sacrificed for error estimation.
	SecurityLevel int

	// SecurityThreshold is the CHSH accept threshold for E91. The CHSH
	// statistic must exceed it; the classical bound is 2 and the quantum
	// bound 2*sqrt(2).
	SecurityThreshold float64

	// ErrorThreshold is the maximum acceptable effective QBER for BB84.
	ErrorThreshold float64

	// EnhancedSecurity enables 3-basis encoding for BB84. E91 always uses
	// three bases.
	EnhancedSecurity bool

	// UseDecoyStates injects decoy rounds for photon-splitting-attack
	// detection; decoy rounds never contribute key material.
	UseDecoyStates bool

	// UseNoiseProtection applies a randomized phase before transmission,
	// which breaks round-correlated (coherent) attacks.
	UseNoiseProtection bool

	// MaxAttempts bounds pipeline restarts after unexpected attempt
	// failures.
	MaxAttempts int

	// AuthenticationMode selects the tag computed over the final key.
	AuthenticationMode AuthMode

	// PreSharedSecret is the bit vector consumed by the authenticator.
	// Required for AuthPreShared and AuthEnhanced. It is read-only for the
	// lifetime of the Session and is never reused for any other purpose.
	PreSharedSecret []byte

	// NoiseRate is the channel's matched-basis flip probability, for
	// experiments. Must be in [0, 0.5).
	NoiseRate float64

	// Pulse describes the simulated photon source. The zero value is an
	// ideal source.
	Pulse quantum.PulseAttrs

	// Eavesdrop simulates an eavesdropper on the quantum channel, using
	// EavesdropStrategy.
	Eavesdrop         bool
	EavesdropStrategy quantum.Strategy

	// Rand supplies all entropy. Defaults to a crypto/rand-backed source;
	// seeded or scripted sources make runs deterministic.
	Rand rng.Source

	// Logger receives best-effort diagnostics; it never affects control
	// flow. Defaults to a discarding logger.
	Logger log.Logger
}

// A Session drives complete key negotiations for one fixed configuration.
// Sessions are not safe for concurrent use.
type Session struct {
	opts   Options
	log    log.Logger
	rand   rng.Source
	secret bitarray.Dense
}

// NewSession returns a Session configured per opts, or an error if the
// options are nonsensical. Option validation is the only boundary that
// signals hard errors; protocol outcomes are reported in Results.
func NewSession(opts Options) (*Session, error) {
	if opts.KeyLength == 0 {
		opts.KeyLength = DefaultKeyLength
	}
	if opts.KeyLength < 8 {
		return nil, fmt.Errorf("key length %d out of range: must be at least 8 bits", opts.KeyLength)
	}
	if opts.SecurityLevel == 0 {
		opts.SecurityLevel = DefaultSecurityLevel
	}
	if opts.SecurityLevel < 1 || opts.SecurityLevel > 5 {
		return nil, fmt.Errorf("security level %d out of range [1,5]", opts.SecurityLevel)
	}
	if opts.SecurityThreshold == 0 {
		opts.SecurityThreshold = DefaultSecurityThreshold
	}
	if opts.SecurityThreshold <= 0 || opts.SecurityThreshold >= chshQuantumBound {
		return nil, fmt.Errorf("security threshold %f out of range (0, 2*sqrt(2))", opts.SecurityThreshold)
	}
	if opts.ErrorThreshold == 0 {
		opts.ErrorThreshold = DefaultErrorThreshold
	}
	if opts.ErrorThreshold <= 0 || opts.ErrorThreshold >= 0.5 {
		return nil, fmt.Errorf("error threshold %f out of range (0, 0.5)", opts.ErrorThreshold)
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.MaxAttempts < 0 {
		return nil, fmt.Errorf("max attempts %d must be positive", opts.MaxAttempts)
	}
	if opts.NoiseRate < 0 || opts.NoiseRate >= 0.5 {
		return nil, fmt.Errorf("noise rate %f out of range [0, 0.5)", opts.NoiseRate)
	}
	if opts.AuthenticationMode != AuthNone && len(opts.PreSharedSecret) == 0 {
		return nil, errors.New("authentication mode requires a pre-shared secret")
	}
	if opts.Rand == nil {
		opts.Rand = rng.Crypto()
	}
	if opts.Logger == nil {
		opts.Logger = log.NewWriter(io.Discard)
	}
	return &Session{
		opts:   opts,
		log:    opts.Logger,
		rand:   opts.Rand,
		secret: bitarray.NewDense(opts.PreSharedSecret, -1),
	}, nil
}

// bases returns the number of bases in play for this session.
func (s *Session) bases() int {
	if s.opts.Variant == VariantE91 || s.opts.EnhancedSecurity {
		return 3
	}
	return 2
}

// sampleRate is the fraction of key-rule rounds sacrificed for error
// estimation, scaled by the security level.
func (s *Session) sampleRate() float64 {
	return 0.15 + 0.05*float64(s.opts.SecurityLevel)
}
