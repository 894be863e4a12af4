package qkd

import (
	"github.com/entangle-io/qkd/qkd/bitarray"
	"github.com/entangle-io/qkd/qkd/quantum"
	"github.com/entangle-io/qkd/qkd/rng"
)

type siftAction uint8

const (
	actionDiscard siftAction = iota
	actionKey
	actionTest
)

// A siftRule maps one (senderBasis, receiverBasis) combination to its
// disposition.
type siftRule struct {
	action siftAction

	// chshIndex positions an actionTest pair within the CHSH statistic.
	chshIndex int

	// invert logically inverts the receiver bit before keying, encoding the
	// expected anti-correlation of entangled pairs.
	invert bool
}

// ruleTable builds the data-driven sifting dispatch table for a variant.
// For E91, equal rectilinear or circular bases generate key material and the
// four designated pairs feed the CHSH statistic; for BB84, any agreeing basis
// within the configured set generates key material. Everything else is
// discarded.
func ruleTable(variant Variant, bases int) [quantum.NumBases][quantum.NumBases]siftRule {
	var t [quantum.NumBases][quantum.NumBases]siftRule
	if variant == VariantE91 {
		t[quantum.BasisRectilinear][quantum.BasisRectilinear] = siftRule{action: actionKey, invert: true}
		t[quantum.BasisCircular][quantum.BasisCircular] = siftRule{action: actionKey, invert: true}
		for i, p := range quantum.CHSHPairs {
			t[p[0]][p[1]] = siftRule{action: actionTest, chshIndex: i}
		}
		return t
	}
	for b := 0; b < bases; b++ {
		t[b][b] = siftRule{action: actionKey}
	}
	return t
}

// pairCounts aggregates agreement statistics for one designated basis pair.
type pairCounts struct {
	agree    int
	disagree int
}

func (p pairCounts) total() int {
	return p.agree + p.disagree
}

// expectation returns E = (agree - disagree) / total, or 0 for an empty
// sample. The statistic is a pure aggregate: it is invariant to sample order.
func (p pairCounts) expectation() float64 {
	if p.total() == 0 {
		return 0
	}
	return float64(p.agree-p.disagree) / float64(p.total())
}

// siftedData holds both partitions produced from one exchange: the aligned
// key-generation bits, the disjoint security-test samples, and the raw counts
// the verifier needs.
type siftedData struct {
	// sender and receiver are the position-aligned sifted key bits. They
	// are always equal length.
	sender   bitarray.Dense
	receiver bitarray.Dense

	// testSender/testReceiver are key-rule rounds sacrificed for error
	// estimation; their positions never reach the key.
	testSender   bitarray.Dense
	testReceiver bitarray.Dense

	// chsh aggregates the four designated security-test pairs.
	chsh [4]pairCounts

	// Decoy rounds are tracked separately and never keyed.
	decoyTotal  int
	decoyErrors int

	rounds  int
	dropped int
}

// testedBits counts every bit consumed for security statistics.
func (d *siftedData) testedBits() int {
	n := d.testSender.Size() + d.decoyTotal
	for _, p := range d.chsh {
		n += p.total()
	}
	return n
}

// decoyErrorRate returns the error rate observed on decoy rounds, or 0 when
// none were measurable.
func (d *siftedData) decoyErrorRate() float64 {
	if d.decoyTotal == 0 {
		return 0
	}
	return float64(d.decoyErrors) / float64(d.decoyTotal)
}

// A siftEngine partitions round records per the rule table. sampleRate is
// the probability that a key-rule round is sacrificed for error estimation.
type siftEngine struct {
	rules      [quantum.NumBases][quantum.NumBases]siftRule
	sampleRate float64
	rand       rng.Source
}

func newSiftEngine(variant Variant, bases int, sampleRate float64, src rng.Source) siftEngine {
	return siftEngine{
		rules:      ruleTable(variant, bases),
		sampleRate: sampleRate,
		rand:       src,
	}
}

// sift partitions records into key material and security-test samples.
// Dropped rounds are skipped; decoy-flagged rounds are always routed to
// security testing regardless of basis.
func (e siftEngine) sift(records []quantum.RoundRecord) siftedData {
	d := siftedData{rounds: len(records)}
	for _, rec := range records {
		if rec.Dropped {
			d.dropped++
			continue
		}
		rule := e.rules[rec.SenderBasis][rec.ReceiverBasis]
		receiverBit := rec.ReceiverBit
		if rule.invert {
			receiverBit = !receiverBit
		}
		if rec.IsDecoy {
			// Only basis-agreeing decoys have a defined expected value.
			if rule.action == actionKey {
				d.decoyTotal++
				if rec.SenderBit != receiverBit {
					d.decoyErrors++
				}
			}
			continue
		}
		switch rule.action {
		case actionKey:
			if e.sampleRate > 0 && e.rand.Float64() < e.sampleRate {
				d.testSender.AppendBit(rec.SenderBit)
				d.testReceiver.AppendBit(receiverBit)
				continue
			}
			d.sender.AppendBit(rec.SenderBit)
			d.receiver.AppendBit(receiverBit)
		case actionTest:
			if rec.SenderBit == rec.ReceiverBit {
				d.chsh[rule.chshIndex].agree++
			} else {
				d.chsh[rule.chshIndex].disagree++
			}
		}
	}
	return d
}

// errorRate returns the fraction of positions at which a and b disagree. It
// is symmetric in its arguments; 0 for equal sequences, 1 for fully
// complementary ones.
func errorRate(a, b bitarray.Dense) float64 {
	if a.Size() == 0 {
		return 0
	}
	return float64(a.XOr(b).CountOnes()) / float64(a.Size())
}
