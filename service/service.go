// Package service exposes key negotiation over JSON-RPC for experiment
// harnesses and remote callers.
package service

import (
	"encoding/hex"
	"fmt"
	"net/http"

	"github.com/gorilla/rpc/v2"
	grjson "github.com/gorilla/rpc/v2/json"
	"github.com/luxfi/log"

	"github.com/entangle-io/qkd/qkd"
	"github.com/entangle-io/qkd/qkd/quantum"
	"github.com/entangle-io/qkd/qkd/rng"
)

// Name is the RPC namespace under which methods are registered.
const Name = "QKD"

// Service provides the RPC methods. Each request builds its own session, so
// concurrent requests never share protocol state.
type Service struct {
	log log.Logger
}

// New returns a Service logging through logger.
func New(logger log.Logger) *Service {
	return &Service{log: logger}
}

// Handler returns an http.Handler serving the service over JSON-RPC.
func (s *Service) Handler() (http.Handler, error) {
	server := rpc.NewServer()
	server.RegisterCodec(grjson.NewCodec(), "application/json")
	server.RegisterCodec(grjson.NewCodec(), "application/json;charset=UTF-8")
	if err := server.RegisterService(s, Name); err != nil {
		return nil, fmt.Errorf("registering service: %w", err)
	}
	return server, nil
}

// SessionArgs carries the wire form of qkd.Options. Zero values take the
// package defaults.
type SessionArgs struct {
	Variant            string  `json:"variant"` // "bb84" or "e91"
	KeyLength          int     `json:"keyLength"`
	SecurityLevel      int     `json:"securityLevel"`
	SecurityThreshold  float64 `json:"securityThreshold"`
	ErrorThreshold     float64 `json:"errorThreshold"`
	EnhancedSecurity   bool    `json:"enhancedSecurity"`
	UseDecoyStates     bool    `json:"useDecoyStates"`
	UseNoiseProtection bool    `json:"useNoiseProtection"`
	MaxAttempts        int     `json:"maxAttempts"`
	AuthenticationMode string  `json:"authenticationMode"` // "none", "preshared", "enhanced"
	PreSharedSecret    string  `json:"preSharedSecret"`    // hex-encoded
	NoiseRate          float64 `json:"noiseRate"`
	MuSignal           float64 `json:"muSignal"`
	MuDecoy            float64 `json:"muDecoy"`

	// Eavesdrop simulates an attack for experiments: "", "intercept-resend",
	// "collective", or "coherent".
	Eavesdrop string `json:"eavesdrop"`

	// Seed, when non-zero, makes the run deterministic.
	Seed int64 `json:"seed"`
}

func (a *SessionArgs) options() (qkd.Options, error) {
	opts := qkd.Options{
		KeyLength:          a.KeyLength,
		SecurityLevel:      a.SecurityLevel,
		SecurityThreshold:  a.SecurityThreshold,
		ErrorThreshold:     a.ErrorThreshold,
		EnhancedSecurity:   a.EnhancedSecurity,
		UseDecoyStates:     a.UseDecoyStates,
		UseNoiseProtection: a.UseNoiseProtection,
		MaxAttempts:        a.MaxAttempts,
		NoiseRate:          a.NoiseRate,
		Pulse:              quantum.PulseAttrs{MuSignal: a.MuSignal, MuDecoy: a.MuDecoy},
	}

	switch a.Variant {
	case "", "bb84":
		opts.Variant = qkd.VariantBB84
	case "e91":
		opts.Variant = qkd.VariantE91
	default:
		return qkd.Options{}, fmt.Errorf("unknown variant %q", a.Variant)
	}

	switch a.AuthenticationMode {
	case "", "none":
		opts.AuthenticationMode = qkd.AuthNone
	case "preshared":
		opts.AuthenticationMode = qkd.AuthPreShared
	case "enhanced":
		opts.AuthenticationMode = qkd.AuthEnhanced
	default:
		return qkd.Options{}, fmt.Errorf("unknown authentication mode %q", a.AuthenticationMode)
	}
	if a.PreSharedSecret != "" {
		secret, err := hex.DecodeString(a.PreSharedSecret)
		if err != nil {
			return qkd.Options{}, fmt.Errorf("decoding pre-shared secret: %w", err)
		}
		opts.PreSharedSecret = secret
	}

	switch a.Eavesdrop {
	case "":
	case "intercept-resend":
		opts.Eavesdrop = true
		opts.EavesdropStrategy = quantum.StrategyInterceptResend
	case "collective":
		opts.Eavesdrop = true
		opts.EavesdropStrategy = quantum.StrategyCollective
	case "coherent":
		opts.Eavesdrop = true
		opts.EavesdropStrategy = quantum.StrategyCoherent
	default:
		return qkd.Options{}, fmt.Errorf("unknown eavesdrop strategy %q", a.Eavesdrop)
	}

	if a.Seed != 0 {
		opts.Rand = rng.NewSeeded(a.Seed)
	}
	return opts, nil
}

// NegotiateReply is the wire form of a qkd.Result.
type NegotiateReply struct {
	Success           bool    `json:"success"`
	Key               string  `json:"key"` // hex-encoded, bit-packed
	KeyBits           int     `json:"keyBits"`
	AuthTag           string  `json:"authTag"` // hex-encoded
	ErrorRate         float64 `json:"errorRate"`
	SecurityParameter float64 `json:"securityParameter"`
	DecoyErrorRate    float64 `json:"decoyErrorRate"`
	FailureCode       string  `json:"failureCode"`
	FailureReason     string  `json:"failureReason"`

	RawBitsExchanged          int    `json:"rawBitsExchanged"`
	SiftedBitsCount           int    `json:"siftedBitsCount"`
	BitsUsedForErrorDetection int    `json:"bitsUsedForErrorDetection"`
	DroppedRounds             int    `json:"droppedRounds"`
	LeakedBits                int    `json:"leakedBits"`
	ReconciliationSkipped     bool   `json:"reconciliationSkipped"`
	Attempts                  int    `json:"attempts"`
	FinalPhase                string `json:"finalPhase"`
}

// Negotiate runs a full key negotiation with the given options.
func (s *Service) Negotiate(r *http.Request, args *SessionArgs, reply *NegotiateReply) error {
	opts, err := args.options()
	if err != nil {
		return err
	}
	opts.Logger = s.log
	session, err := qkd.NewSession(opts)
	if err != nil {
		return err
	}
	res, err := session.NegotiateKey()
	if err != nil {
		return err
	}

	reply.Success = res.Success
	reply.Key = hex.EncodeToString(res.Key)
	reply.KeyBits = res.KeyBits
	reply.AuthTag = hex.EncodeToString(res.AuthTag)
	reply.ErrorRate = res.ErrorRate
	reply.SecurityParameter = res.SecurityParameter
	reply.DecoyErrorRate = res.DecoyErrorRate
	reply.FailureCode = res.FailureCode.String()
	reply.FailureReason = res.FailureReason
	reply.RawBitsExchanged = res.RawBitsExchanged
	reply.SiftedBitsCount = res.SiftedBitsCount
	reply.BitsUsedForErrorDetection = res.BitsUsedForErrorDetection
	reply.DroppedRounds = res.DroppedRounds
	reply.LeakedBits = res.LeakedBits
	reply.ReconciliationSkipped = res.ReconciliationSkipped
	reply.Attempts = res.Attempts
	reply.FinalPhase = res.FinalPhase.String()
	return nil
}

// VerifyChannelReply reports a channel probe verdict.
type VerifyChannelReply struct {
	Secure    bool    `json:"secure"`
	Statistic float64 `json:"statistic"`
	ErrorRate float64 `json:"errorRate"`
}

// VerifyChannel probes the configured channel without producing a key.
func (s *Service) VerifyChannel(r *http.Request, args *SessionArgs, reply *VerifyChannelReply) error {
	opts, err := args.options()
	if err != nil {
		return err
	}
	opts.Logger = s.log
	session, err := qkd.NewSession(opts)
	if err != nil {
		return err
	}
	secure, statistic, errRate, err := session.VerifyChannel()
	if err != nil {
		return err
	}
	reply.Secure = secure
	reply.Statistic = statistic
	reply.ErrorRate = errRate
	return nil
}

// EstimateRoundsArgs parameterizes a round-count estimate.
type EstimateRoundsArgs struct {
	KeyLength         int     `json:"keyLength"`
	ExpectedErrorRate float64 `json:"expectedErrorRate"`
	EnhancedSecurity  bool    `json:"enhancedSecurity"`
}

// EstimateRoundsReply carries the recommended exchange volume.
type EstimateRoundsReply struct {
	Rounds int `json:"rounds"`
}

// EstimateRounds recommends an exchange round count for a target key length.
func (s *Service) EstimateRounds(r *http.Request, args *EstimateRoundsArgs, reply *EstimateRoundsReply) error {
	if args.KeyLength <= 0 {
		return fmt.Errorf("key length %d must be positive", args.KeyLength)
	}
	reply.Rounds = qkd.EstimateRounds(args.KeyLength, args.ExpectedErrorRate, args.EnhancedSecurity)
	return nil
}
