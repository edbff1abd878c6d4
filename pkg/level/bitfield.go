package level

import (
	"fmt"
	"math/big"
	"strings"
)

// Bitfield is a per-segment visibility mask. Segment i lives in byte i/8,
// bit i&7 (least significant first).
type Bitfield []byte

// BitfieldSize returns the number of bytes per bitfield for n segments.
func BitfieldSize(n int) int {
	return (n + 7) / 8
}

// NewBitfield returns an empty mask sized for n segments.
func NewBitfield(n int) Bitfield {
	return make(Bitfield, BitfieldSize(n))
}

// BitfieldFromSegments builds a mask for n segments with the given bits set.
// Indices outside [0, n) are ignored.
func BitfieldFromSegments(n int, segments []int) Bitfield {
	bf := NewBitfield(n)
	for _, s := range segments {
		if s >= 0 && s < n {
			bf.Set(s)
		}
	}
	return bf
}

// Set marks segment i visible.
func (b Bitfield) Set(i int) {
	b[i/8] |= 1 << (i & 7)
}

// Has reports whether segment i is visible.
func (b Bitfield) Has(i int) bool {
	if i < 0 || i/8 >= len(b) {
		return false
	}
	return b[i/8]&(1<<(i&7)) != 0
}

// Segments lists the visible segment indices in ascending order.
func (b Bitfield) Segments() []int {
	var out []int
	for i := 0; i < len(b)*8; i++ {
		if b.Has(i) {
			out = append(out, i)
		}
	}
	return out
}

// Text returns the mask as a hexadecimal integer literal, the form used by
// segment_mask directives.
func (b Bitfield) Text() string {
	return "0x" + new(big.Int).SetBytes(b).Text(16)
}

// ParseBitfield parses an integer literal (decimal, 0x hex, 0o, 0b) into a
// mask sized for n segments.
func ParseBitfield(s string, n int) (Bitfield, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 0)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid segment mask %q", s)
	}
	bf := NewBitfield(n)
	if (v.BitLen()+7)/8 > len(bf) {
		return nil, fmt.Errorf("segment mask %q does not fit %d segments", s, n)
	}
	v.FillBytes(bf)
	return bf, nil
}
