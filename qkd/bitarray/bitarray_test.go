package bitarray

import (
	"bytes"
	"testing"
)

func TestNewDense(t *testing.T) {
	tcs := []struct {
		name   string
		data   []byte
		bitLen int
		esize  int
		ebytes []byte
	}{
		{
			name:   "inferred length",
			data:   []byte{0b101, 0xff},
			bitLen: -1,
			esize:  16,
			ebytes: []byte{0b101, 0xff},
		}, {
			name:   "truncating length",
			data:   []byte{0xff},
			bitLen: 3,
			esize:  3,
			ebytes: []byte{0b111},
		}, {
			name:   "padding length",
			data:   []byte{0b1},
			bitLen: 12,
			esize:  12,
			ebytes: []byte{0b1, 0},
		}, {
			name:   "nil data",
			bitLen: 9,
			esize:  9,
			ebytes: []byte{0, 0},
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			d := NewDense(tc.data, tc.bitLen)
			if d.Size() != tc.esize {
				t.Errorf("got bitarray of len %d, want %d", d.Size(), tc.esize)
			}
			if !bytes.Equal(d.Data(), tc.ebytes) {
				t.Errorf("NewDense(%v, %d).Data() == %v, want %v", tc.data, tc.bitLen, d.Data(), tc.ebytes)
			}
		})
	}
}

func TestGet(t *testing.T) {
	d := NewDense([]byte{0b00101101}, 8)
	want := []bool{true, false, true, true, false, true, false, false}
	for i, w := range want {
		if got := d.Get(i); got != w {
			t.Errorf("Get(%d) == %v, want %v", i, got, w)
		}
	}
	if d.Get(-1) || d.Get(8) {
		t.Error("out-of-range Get returned true, want false")
	}
}

func TestFlip(t *testing.T) {
	d := NewDense([]byte{0b00101101, 0b1}, 9)
	d.Flip(0)
	d.Flip(8)
	want := []byte{0b00101100, 0}
	if !bytes.Equal(d.Data(), want) {
		t.Errorf("got %08b after flips, want %08b", d.Data(), want)
	}

	// Flipping within a view must hit the underlying position.
	base := NewDense([]byte{0, 0}, 16)
	view, err := base.Slice(3, 11)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	view.Flip(1)
	if !base.Get(4) {
		t.Error("flip through a view did not reach the base bit")
	}
}

func TestAppendBitAndFromBits(t *testing.T) {
	vals := []bool{true, false, false, true, true, false, true, false, true}
	var d Dense
	for _, v := range vals {
		d.AppendBit(v)
	}
	f := FromBits(vals)
	if d.Size() != len(vals) || f.Size() != len(vals) {
		t.Fatalf("got lens %d, %d, want %d", d.Size(), f.Size(), len(vals))
	}
	if !bytes.Equal(d.Data(), f.Data()) {
		t.Errorf("AppendBit and FromBits disagree: %08b vs %08b", d.Data(), f.Data())
	}
	for i, v := range vals {
		if d.Get(i) != v {
			t.Errorf("bit %d == %v, want %v", i, d.Get(i), v)
		}
	}
}

func TestXOr(t *testing.T) {
	tcs := []struct {
		name string
		a    Dense
		b    Dense
		eout Dense
	}{
		{
			name: "aligned",
			a:    NewDense([]byte{0b101}, 8),
			b:    NewDense([]byte{0b110}, 8),
			eout: NewDense([]byte{0b011}, 8),
		}, {
			name: "short a",
			a:    NewDense([]byte{0b101}, 8),
			b:    NewDense([]byte{0b110, 0b1}, 9),
			eout: NewDense([]byte{0b011, 0b1}, 9),
		}, {
			name: "short b",
			a:    NewDense([]byte{0b101, 0b1}, 9),
			b:    NewDense([]byte{0b110}, 8),
			eout: NewDense([]byte{0b011, 0b1}, 9),
		}, {
			name: "empty a",
			b:    NewDense([]byte{0b110}, 8),
			eout: NewDense([]byte{0b110}, 8),
		}, {
			name: "empty b",
			a:    NewDense([]byte{0b110}, 8),
			eout: NewDense([]byte{0b110}, 8),
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			out := tc.a.XOr(tc.b)
			if out.Size() != tc.eout.Size() {
				t.Errorf("got bitarray of len %d, want %d", out.Size(), tc.eout.Size())
			}
			if !bytes.Equal(out.Data(), tc.eout.Data()) {
				t.Errorf("xor(%v, %v) == %v, want %v", tc.a.Data(), tc.b.Data(), out.Data(), tc.eout.Data())
			}
		})
	}
}

func TestParity(t *testing.T) {
	tcs := []struct {
		name string
		d    Dense
		want bool
	}{
		{name: "empty", d: Empty(), want: false},
		{name: "even", d: NewDense([]byte{0b101}, 8), want: false},
		{name: "odd", d: NewDense([]byte{0b111}, 8), want: true},
		{name: "unaligned ignores overdraw", d: NewDense([]byte{0b11111000}, 4), want: true},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.d.Parity(); got != tc.want {
				t.Errorf("parity(%08b) == %v, want %v", tc.d.Data(), got, tc.want)
			}
		})
	}
}

func TestCountOnes(t *testing.T) {
	tcs := []struct {
		name string
		d    Dense
		want int
	}{
		{name: "empty", d: Empty(), want: 0},
		{name: "full byte", d: NewDense([]byte{0xff}, 8), want: 8},
		{name: "truncated", d: NewDense([]byte{0xff}, 5), want: 5},
		{name: "multi byte", d: NewDense([]byte{0b101, 0b11}, 16), want: 4},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.d.CountOnes(); got != tc.want {
				t.Errorf("countOnes(%08b) == %d, want %d", tc.d.Data(), got, tc.want)
			}
		})
	}
}

func TestSlice(t *testing.T) {
	tcs := []struct {
		name  string
		start int
		end   int
		bits  Dense
		eout  Dense
	}{
		{
			name:  "full slice",
			bits:  NewDense([]byte{0b11101101}, 8),
			start: 0,
			end:   8,
			eout:  NewDense([]byte{0b11101101}, 8),
		}, {
			name: "empty slice",
			bits: NewDense([]byte{0b11101101}, 8),
		}, {
			name:  "aligned",
			bits:  NewDense([]byte{0b1, 0b11101101, 0b1}, 24),
			start: 8,
			end:   16,
			eout:  NewDense([]byte{0b11101101}, 8),
		}, {
			name:  "unaligned start",
			bits:  NewDense([]byte{0b10, 0b1, 0b1}, 24),
			start: 1,
			end:   16,
			eout:  NewDense([]byte{0b10000001, 0}, 15),
		}, {
			name:  "unaligned end",
			bits:  NewDense([]byte{0b11111111, 0, 0b1}, 24),
			start: 8,
			end:   17,
			eout:  NewDense([]byte{0, 0b1}, 9),
		}, {
			name:  "unaligned spanning extra byte",
			bits:  NewDense([]byte{0, 0b10000000, 0b1}, 24),
			start: 7,
			end:   17,
			eout:  NewDense([]byte{0, 0b11}, 10),
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			sArr, err := tc.bits.Slice(tc.start, tc.end)
			if err != nil {
				t.Fatalf("slice(%d, %d) = %v, want nil error", tc.start, tc.end, err)
			}
			if sArr.Size() != tc.eout.Size() {
				t.Errorf("got bitarray of len %d, want %d", sArr.Size(), tc.eout.Size())
			}
			if !bytes.Equal(sArr.Data(), tc.eout.Data()) {
				t.Errorf("slice(%v, %d, %d) == %v, want %v", tc.bits.Data(), tc.start, tc.end, sArr.Data(), tc.eout.Data())
			}
		})
	}
}

func TestSliceOfSlice(t *testing.T) {
	base := NewDense([]byte{0b11001010, 0b01100101}, 16)
	outer, err := base.Slice(2, 14)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	inner, err := outer.Slice(3, 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < inner.Size(); i++ {
		if inner.Get(i) != base.Get(i + 5) {
			t.Errorf("inner bit %d == %v, want base bit %d == %v",
				i, inner.Get(i), i+5, base.Get(i+5))
		}
	}
}

func TestSliceErrors(t *testing.T) {
	d := NewDense([]byte{0xff}, 8)
	if _, err := d.Slice(-1, 4); err == nil {
		t.Error("negative start slice succeeded, want error")
	}
	if _, err := d.Slice(4, 2); err == nil {
		t.Error("inverted slice succeeded, want error")
	}
	if _, err := d.Slice(0, 9); err == nil {
		t.Error("overlong slice succeeded, want error")
	}

	// A window that fits the length but runs past the end is still
	// out of range.
	long := NewDense([]byte{0xff, 0b11}, 10)
	if _, err := long.Slice(8, 12); err == nil {
		t.Error("out-of-range window succeeded, want error")
	}
}
