// Package bitarray provides utilities for operating on densely-packed arrays
// of booleans. Bits are packed little-endian within each byte.
package bitarray

import (
	"fmt"
	"math/bits"
)

// A Dense is a bit array where every bit is explicitly represented.
type Dense struct {
	bits []byte
	len  int

	offset int
}

const blockSize = 8

// NewDense returns a new Dense whose data is a copy of data, and whose length
// is bitLen. If bitLen is longer than data, then trailing zeros are added. If
// bitLen is negative, then it is inferred from data.
func NewDense(data []byte, bitLen int) Dense {
	if bitLen < 0 {
		bitLen = len(data) * blockSize
	}
	b := make([]byte, BytesFor(bitLen))
	copy(b, data)
	return Dense{
		bits: b,
		len:  bitLen,
	}
}

// Empty returns an empty, dense bit array.
func Empty() Dense {
	return Dense{}
}

// FromBits packs a slice of booleans into a Dense.
func FromBits(vals []bool) Dense {
	var d Dense
	for _, v := range vals {
		d.AppendBit(v)
	}
	return d
}

// Size returns the number of bits in d.
func (d Dense) Size() int {
	return d.len
}

// ByteSize returns the number of bytes necessary to represent d.
func (d Dense) ByteSize() int {
	return BytesFor(d.len)
}

// Data returns a copy of the bytes data underlying d.
func (d Dense) Data() []byte {
	data := make([]byte, 0, BytesFor(d.len))
	for i := 0; i < BytesFor(d.len); i++ {
		data = append(data, d.getByte(i))
	}
	return data
}

// Get returns the bit at idx. Out-of-range reads return false.
func (d Dense) Get(idx int) bool {
	if idx >= d.len || idx < 0 {
		return false
	}
	idx = idx + d.offset
	block := d.bits[idx/blockSize]
	pos := idx % blockSize
	return 0 < block&(1<<pos)
}

// Flip inverts the bit at idx in place.
func (d *Dense) Flip(idx int) {
	idx = idx + d.offset
	d.bits[idx/blockSize] ^= 1 << (idx % blockSize)
}

// AppendBit adds a single bit to the end of d.
func (d *Dense) AppendBit(bit bool) {
	pos := (d.len + d.offset) % blockSize
	d.len += 1
	if pos == 0 {
		d.bits = append(d.bits, 0)
	}
	if bit {
		d.bits[len(d.bits)-1] |= 1 << pos
	}
}

// XOr computes a bitwise XOR operation between d and other. If one of the two
// is shorter than the other, then trailing 0s are implicitly added to make the
// sizes match.
func (d Dense) XOr(other Dense) Dense {
	short, long := other, d
	if d.len < other.len {
		short, long = d, other
	}
	r := Dense{
		bits: make([]byte, 0, BytesFor(long.len)),
		len:  long.len,
	}
	for i := 0; i < short.ByteSize(); i++ {
		r.bits = append(r.bits, short.getByte(i)^long.getByte(i))
	}
	for j := short.ByteSize(); j < long.ByteSize(); j++ {
		r.bits = append(r.bits, long.getByte(j)) // 0^v == v
	}
	return r
}

// Parity returns the overall parity of d, with true corresponding to 1 and
// false to 0.
func (d Dense) Parity() bool {
	var sum byte
	for i := 0; i < BytesFor(d.len); i++ {
		sum ^= d.getByte(i)
	}
	return bits.OnesCount8(sum)%2 == 1
}

// CountOnes returns the total number of bits set in d.
func (d Dense) CountOnes() int {
	var sum int
	for i := 0; i < BytesFor(d.len); i++ {
		sum += bits.OnesCount8(d.getByte(i))
	}
	return sum
}

// Slice creates a view into d including bits [start, end).
func (d Dense) Slice(start, end int) (Dense, error) {
	if end > d.len {
		return Dense{}, fmt.Errorf("slicing bitarray of len %d up to %d", d.len, end)
	}
	if start < 0 {
		return Dense{}, fmt.Errorf("slicing bitarray with negative start: %d", start)
	}
	if end < start {
		return Dense{}, fmt.Errorf("slicing bitarray to negative length: %d", end-start)
	}
	abs := start + d.offset
	blockStart := abs / blockSize
	off := abs % blockSize
	blockEnd := blockStart + BytesFor(end-start+off)
	if blockEnd > len(d.bits) {
		blockEnd = len(d.bits)
	}
	return Dense{
		bits:   d.bits[blockStart:blockEnd],
		len:    end - start,
		offset: off,
	}, nil
}

func (d *Dense) getByte(i int) byte {
	lo := d.bits[i] >> d.offset
	var hi byte
	if i+1 < len(d.bits) && d.offset > 0 {
		hi = d.bits[i+1] << (blockSize - d.offset)
	}
	r := lo | hi
	overdraw := (i+1)*blockSize - d.len
	if overdraw < 0 {
		overdraw = 0
	}
	if overdraw > blockSize {
		overdraw = blockSize
	}
	return r << overdraw >> overdraw
}

// BytesFor returns the number of bytes necessary to represent the given
// number of bits.
func BytesFor(bits int) int {
	return (bits + blockSize - 1) / blockSize
}
