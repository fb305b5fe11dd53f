package fits

import (
	"fmt"
	"strconv"

	"github.com/starbeam-io/go-fits/internal/binary"
)

// allOnes is the expected ones-complement sum of a stamped HDU: the
// CHECKSUM card encodes the complement of the rest, so the whole unit
// sums to 0xFFFFFFFF.
const allOnes = ^uint32(0)

// VerifyChecksums checks the CHECKSUM and DATASUM cards of every HDU
// against the bytes on disk. HDUs without checksum cards are skipped.
func (f *File) VerifyChecksums() error {
	for i := range f.hdus {
		if _, err := f.VerifyHDU(i); err != nil {
			return err
		}
	}
	return nil
}

// VerifyHDU checks HDU i's checksum cards against the bytes on disk.
// The bool reports whether the HDU carried any checksum cards; an HDU
// with none verifies vacuously.
//
// Verification reads the header region as stored, so it reflects disk
// state, not unflushed in-memory edits.
func (f *File) VerifyHDU(i int) (bool, error) {
	hdu, err := f.HDU(i)
	if err != nil {
		return false, err
	}
	if f.closed {
		return false, ErrClosed
	}
	b := hdu.base()
	if b.file == nil {
		return false, nil // in-memory HDU, nothing on disk to check
	}

	h := hdu.Header()
	datasumCard, hasDatasum := h.Str("DATASUM")
	_, hasChecksum := h.Str("CHECKSUM")
	if !hasDatasum && !hasChecksum {
		return false, nil
	}

	data, err := hdu.Raw()
	if err != nil {
		return true, err
	}
	datasum := binary.Sum32(data, 0)

	if hasDatasum {
		want, err := strconv.ParseUint(trimBlank(datasumCard), 10, 32)
		if err != nil {
			return true, fmt.Errorf("HDU %d: unparsable DATASUM %q: %w", i, datasumCard, ErrChecksum)
		}
		if uint32(want) != datasum {
			return true, fmt.Errorf("HDU %d: DATASUM %d, computed %d: %w", i, want, datasum, ErrChecksum)
		}
	}

	if hasChecksum {
		span := b.extent.HeaderSize()
		hbytes, err := f.reader.At(b.extent.HeaderOffset).ReadBytes(int(span))
		if err != nil {
			return true, fmt.Errorf("HDU %d: reading header: %w", i, err)
		}
		// Zero padding in the data region contributes nothing, so the
		// unpadded data sum seeds the header sum directly.
		if sum := binary.Sum32(hbytes, datasum); sum != allOnes {
			return true, fmt.Errorf("HDU %d: checksum 0x%08X, want all ones: %w", i, sum, ErrChecksum)
		}
	}
	return true, nil
}

func trimBlank(s string) string {
	for len(s) > 0 && (s[0] == ' ') {
		s = s[1:]
	}
	for len(s) > 0 && (s[len(s)-1] == ' ') {
		s = s[:len(s)-1]
	}
	return s
}
