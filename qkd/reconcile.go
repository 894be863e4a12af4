package qkd

import (
	"github.com/entangle-io/qkd/qkd/bitarray"
	"github.com/entangle-io/qkd/qkd/rng"
)

const (
	// Below minReconcileBits parity blocks carry no information; above
	// maxReconcileRate the channel is too noisy to correct economically.
	// Both cases pass the key through uncorrected rather than failing.
	minReconcileBits = 8
	maxReconcileRate = 0.15
)

// defaultBlockSchedule is the descending ladder of parity block sizes.
var defaultBlockSchedule = []int{16, 8, 4, 2}

// A reconciler corrects the receiver's sifted bits against the sender's by
// iterated block parity, tracking the information each parity announcement
// leaks to a listening adversary.
type reconciler struct {
	blocks []int
	rand   rng.Source
}

// A reconcileOutcome carries the corrected receiver key and the leak ledger.
// leakedBits only ever increases during correction: one bit is charged per
// correction event, the standard cascade-style accounting approximation.
type reconcileOutcome struct {
	corrected  bitarray.Dense
	leakedBits int
	skipped    bool
}

// reconcile runs the parity ladder over a copy of receiver. Blocks holding an
// even number of errors slip through every pass undetected, so the outcome
// may still differ from sender; the controller detects that divergence after
// amplification.
func (r reconciler) reconcile(sender, receiver bitarray.Dense, estRate float64) reconcileOutcome {
	out := reconcileOutcome{corrected: bitarray.NewDense(receiver.Data(), receiver.Size())}
	if receiver.Size() < minReconcileBits || estRate > maxReconcileRate {
		out.skipped = true
		return out
	}
	blocks := r.blocks
	if len(blocks) == 0 {
		blocks = defaultBlockSchedule
	}
	n := receiver.Size()
	for _, size := range blocks {
		if size < 2 {
			continue
		}
		for start := 0; start < n; start += size {
			end := start + size
			if end > n {
				end = n
			}
			if blockParity(sender, start, end) == blockParity(out.corrected, start, end) {
				continue
			}
			out.leakedBits++
			r.correctBlock(sender, &out.corrected, start, end)
		}
	}
	return out
}

// correctBlock flips one disagreeing position within [start, end). A parity
// mismatch implies an odd number of disagreements, so one always exists and
// the single-error case is fully fixed.
func (r reconciler) correctBlock(sender bitarray.Dense, corrected *bitarray.Dense, start, end int) {
	var mismatches []int
	for i := start; i < end; i++ {
		if sender.Get(i) != corrected.Get(i) {
			mismatches = append(mismatches, i)
		}
	}
	if len(mismatches) == 0 {
		return
	}
	corrected.Flip(mismatches[r.rand.IntN(len(mismatches))])
}

func blockParity(d bitarray.Dense, start, end int) bool {
	blk, err := d.Slice(start, end)
	if err != nil {
		return false
	}
	return blk.Parity()
}
