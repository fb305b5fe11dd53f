package binary

// FITS files are organized in fixed-size blocks. Headers are sequences of
// 80-character cards, 36 per block; data regions are padded with zeros to
// the next block boundary, headers with ASCII spaces.
const (
	// BlockSize is the FITS logical record size in bytes.
	BlockSize = 2880

	// CardSize is the size of a single header card in bytes.
	CardSize = 80

	// CardsPerBlock is the number of header cards per block.
	CardsPerBlock = BlockSize / CardSize
)

// PadLength returns the number of padding bytes needed to extend n to the
// next block boundary. Returns 0 if n is already block aligned.
func PadLength(n int64) int64 {
	if r := n % BlockSize; r != 0 {
		return BlockSize - r
	}
	return 0
}

// PaddedSize returns n rounded up to the next block boundary.
func PaddedSize(n int64) int64 {
	return n + PadLength(n)
}

// IsAligned reports whether n falls on a block boundary.
func IsAligned(n int64) bool {
	return n%BlockSize == 0
}
