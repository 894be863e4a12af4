// bench.go runs a full key negotiation for each entry in the cartesian
// product of a collection of tuning parameters, e.g. protocol variant, key
// length, and channel noise, and outputs a CSV of relevant statistics for
// each combination, e.g. exchange volume and final key length.
package main

import (
	"fmt"
	"log"
	"os"
	"text/template"

	flag "github.com/spf13/pflag"

	"github.com/entangle-io/qkd/qkd"
	"github.com/entangle-io/qkd/qkd/quantum"
	"github.com/entangle-io/qkd/qkd/rng"
)

var (
	variants = flag.StringSlice("variants", []string{"bb84", "e91"},
		"The protocol variants to exercise.")
	keyLengths = flag.IntSlice("keyLengths", []int{128},
		"The target key lengths in bits.")
	noiseRates = flag.Float64Slice("noiseRates", []float64{0, 0.02, 0.05},
		"The matched-basis flip probabilities to simulate.")
	securityLevels = flag.IntSlice("securityLevels", []int{2},
		"The security levels to exercise.")
	eavesdroppers = flag.StringSlice("eavesdroppers", []string{"none"},
		"The eavesdropper strategies to simulate: none, intercept-resend, collective, coherent.")
	seed = flag.Int64("seed", 42, "The base seed for deterministic runs.")
)

const (
	header   = "Variant, KeyLength, NoiseRate, SecurityLevel, Eavesdropper, Rounds, Sifted, TestedBits, ErrorRate, Statistic, LeakedBits, KeyBits, Attempts, Succeeded, FailureCode"
	lineTmpl = "{{.Variant}}, {{.KeyLength}}, {{.NoiseRate}}, {{.SecurityLevel}}, {{.Eavesdropper}}, {{.Rounds}}, {{.Sifted}}, {{.TestedBits}}, {{.ErrorRate}}, {{.Statistic}}, {{.LeakedBits}}, {{.KeyBits}}, {{.Attempts}}, {{.Succeeded}}, {{.FailureCode}}\n"
)

// An Experiment packages together the result of benchmarking a single
// parameterization for easy formatting.
type Experiment struct {
	// Fields corresponding to experiment parameters.
	Variant       string
	KeyLength     int
	NoiseRate     float64
	SecurityLevel int
	Eavesdropper  string

	// Fields corresponding to experiment results.
	Rounds      int
	Sifted      int
	TestedBits  int
	ErrorRate   float64
	Statistic   float64
	LeakedBits  int
	KeyBits     int
	Attempts    int
	Succeeded   bool
	FailureCode string
}

func main() {
	flag.Parse()
	fmt.Println(header)
	tmpl := template.Must(template.New("line").Parse(lineTmpl))
	n := int64(0)
	for _, variant := range *variants {
		for _, keyLength := range *keyLengths {
			for _, noise := range *noiseRates {
				for _, level := range *securityLevels {
					for _, eve := range *eavesdroppers {
						n++
						exp := &Experiment{
							Variant:       variant,
							KeyLength:     keyLength,
							NoiseRate:     noise,
							SecurityLevel: level,
							Eavesdropper:  eve,
						}
						if err := bench(exp, *seed+n); err != nil {
							log.Fatalf("Benching %+v: %v", exp, err)
						}
						if err := tmpl.Execute(os.Stdout, exp); err != nil {
							log.Fatalf("BUG: could not fill in line template: %v", err)
						}
					}
				}
			}
		}
	}
}

func bench(exp *Experiment, seed int64) error {
	opts := qkd.Options{
		KeyLength:     exp.KeyLength,
		SecurityLevel: exp.SecurityLevel,
		NoiseRate:     exp.NoiseRate,
		Rand:          rng.NewSeeded(seed),
	}
	switch exp.Variant {
	case "bb84":
		opts.Variant = qkd.VariantBB84
	case "e91":
		opts.Variant = qkd.VariantE91
	default:
		return fmt.Errorf("unknown variant %q", exp.Variant)
	}
	switch exp.Eavesdropper {
	case "none":
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
		return fmt.Errorf("unknown eavesdropper %q", exp.Eavesdropper)
	}

	session, err := qkd.NewSession(opts)
	if err != nil {
		return err
	}
	res, err := session.NegotiateKey()
	if err != nil {
		return err
	}

	exp.Rounds = res.RawBitsExchanged
	exp.Sifted = res.SiftedBitsCount
	exp.TestedBits = res.BitsUsedForErrorDetection
	exp.ErrorRate = res.ErrorRate
	exp.Statistic = res.SecurityParameter
	exp.LeakedBits = res.LeakedBits
	exp.KeyBits = res.KeyBits
	exp.Attempts = res.Attempts
	exp.Succeeded = res.Success
	exp.FailureCode = res.FailureCode.String()
	return nil
}
