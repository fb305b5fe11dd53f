package binary

import (
	"encoding/binary"
	"fmt"
)

// Sum32 computes the FITS ones-complement 32-bit checksum of data,
// accumulating onto seed. The input is treated as a sequence of
// big-endian uint32 words; a trailing partial word is zero padded.
// Carries out of the low 32 bits are folded back in (ones-complement
// addition), so the result of summing a correctly stamped HDU is
// 0xFFFFFFFF.
func Sum32(data []byte, seed uint32) uint32 {
	s := uint64(seed)
	n := len(data) &^ 3
	for i := 0; i < n; i += 4 {
		s += uint64(binary.BigEndian.Uint32(data[i:]))
		s = (s & 0xFFFFFFFF) + (s >> 32)
	}
	if rem := len(data) - n; rem > 0 {
		var last [4]byte
		copy(last[:], data[n:])
		s += uint64(binary.BigEndian.Uint32(last[:]))
	}
	for s>>32 != 0 {
		s = (s & 0xFFFFFFFF) + (s >> 32)
	}
	return uint32(s)
}

// VerifySum32 verifies data against an expected ones-complement sum.
func VerifySum32(data []byte, expected uint32) bool {
	return Sum32(data, 0) == expected
}

// csMask selects the four bytes of the checksum, most significant first.
var csMask = [4]uint32{0xFF000000, 0x00FF0000, 0x0000FF00, 0x000000FF}

// csExclude lists the ASCII punctuation codes that must not appear in an
// encoded checksum: ':' through '@' and '[' through '`'.
var csExclude = [13]int32{
	0x3A, 0x3B, 0x3C, 0x3D, 0x3E, 0x3F, 0x40,
	0x5B, 0x5C, 0x5D, 0x5E, 0x5F, 0x60,
}

// encodeByte splits one checksum byte into four printable characters
// whose codes sum to byte + 4*'0'. Excluded punctuation is avoided by
// shifting value between the members of each character pair, which
// preserves the pair sum.
func encodeByte(b uint32) [4]int32 {
	q := int32(b/4) + '0'
	r := int32(b % 4)
	ch := [4]int32{q + r, q, q, q}

	for check := true; check; {
		check = false
		for _, x := range csExclude {
			for _, j := range [2]int{0, 2} {
				if ch[j] == x || ch[j+1] == x {
					ch[j]++
					ch[j+1]--
					check = true
				}
			}
		}
	}
	return ch
}

// Encode16 encodes a 32-bit value as the 16-character ASCII string used
// by the CHECKSUM keyword. The caller passes the ones-complement of the
// accumulated sum; Encode16 itself performs no complementing. The
// encoding interleaves the four characters of each byte column-wise and
// rotates the result right by one character, per the FITS checksum
// convention. Encode16(0) is "0000000000000000".
func Encode16(v uint32) string {
	var asc [16]byte
	for i := 0; i < 4; i++ {
		b := (v & csMask[i]) >> uint((3-i)*8)
		ch := encodeByte(b)
		for j := 0; j < 4; j++ {
			asc[4*j+i] = byte(ch[j])
		}
	}

	// Rotate right by one character.
	var out [16]byte
	for i := range out {
		out[i] = asc[(i+15)%16]
	}
	return string(out[:])
}

// Decode16 decodes a 16-character CHECKSUM string back to its 32-bit
// value. It is the inverse of Encode16.
func Decode16(s string) (uint32, error) {
	if len(s) != 16 {
		return 0, fmt.Errorf("checksum string must be 16 characters, got %d", len(s))
	}

	// Undo the rotation.
	var asc [16]int32
	for i := range asc {
		asc[i] = int32(s[(i+1)%16])
	}

	var v uint32
	for i := 0; i < 4; i++ {
		sum := asc[i] + asc[4+i] + asc[8+i] + asc[12+i] - 4*'0'
		if sum < 0 || sum > 0xFF {
			return 0, fmt.Errorf("invalid checksum string %q", s)
		}
		v |= uint32(sum) << uint((3-i)*8)
	}
	return v, nil
}
