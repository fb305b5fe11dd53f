// Package layout tracks where each HDU lives inside a FITS file.
//
// An extent records the byte offsets of one HDU's header and data
// regions as read from (or written to) disk. The map answers the
// questions the update path needs: does a rewritten header still fit in
// place, and where does everything land after an HDU grows.
package layout

import (
	"fmt"

	"github.com/starbeam-io/go-fits/internal/binary"
)

// Extent describes the on-disk placement of a single HDU.
type Extent struct {
	// HeaderOffset is the file offset of the first header card.
	HeaderOffset int64

	// DataOffset is the file offset of the data region, immediately
	// after the header padding.
	DataOffset int64

	// DataSize is the unpadded data size in bytes.
	DataSize int64
}

// HeaderSize returns the padded header span in bytes.
func (e Extent) HeaderSize() int64 {
	return e.DataOffset - e.HeaderOffset
}

// DataSpan returns the padded data span in bytes.
func (e Extent) DataSpan() int64 {
	return binary.PaddedSize(e.DataSize)
}

// End returns the offset one past the HDU's padded data region, which
// is the header offset of the next HDU.
func (e Extent) End() int64 {
	return e.DataOffset + e.DataSpan()
}

// Map is an ordered collection of HDU extents.
type Map struct {
	extents []Extent
}

// Append records the next HDU's extent.
func (m *Map) Append(e Extent) {
	m.extents = append(m.extents, e)
}

// Len returns the number of recorded extents.
func (m *Map) Len() int {
	return len(m.extents)
}

// At returns the extent for HDU i.
func (m *Map) At(i int) Extent {
	return m.extents[i]
}

// SetDataSize updates the recorded unpadded data size for HDU i.
func (m *Map) SetDataSize(i int, size int64) {
	m.extents[i].DataSize = size
}

// FitsInPlace reports whether a serialized header of headerLen bytes
// (already block padded) can overwrite HDU i's header without moving
// the data region.
func (m *Map) FitsInPlace(i int, headerLen int64) bool {
	if i < 0 || i >= len(m.extents) {
		return false
	}
	return headerLen <= m.extents[i].HeaderSize()
}

// EOF returns the offset one past the final HDU, i.e. the file size.
// Zero for an empty map.
func (m *Map) EOF() int64 {
	if len(m.extents) == 0 {
		return 0
	}
	return m.extents[len(m.extents)-1].End()
}

// Validate checks the structural invariants: block-aligned offsets,
// strictly increasing extents, no gaps or overlaps between HDUs, and
// the first HDU at offset zero.
func (m *Map) Validate() error {
	var next int64
	for i, e := range m.extents {
		if e.HeaderOffset != next {
			return fmt.Errorf("HDU %d starts at %d, expected %d", i, e.HeaderOffset, next)
		}
		if !binary.IsAligned(e.HeaderOffset) || !binary.IsAligned(e.DataOffset) {
			return fmt.Errorf("HDU %d extent not block aligned: header=%d data=%d",
				i, e.HeaderOffset, e.DataOffset)
		}
		if e.DataOffset <= e.HeaderOffset {
			return fmt.Errorf("HDU %d has empty header span", i)
		}
		if e.DataSize < 0 {
			return fmt.Errorf("HDU %d has negative data size %d", i, e.DataSize)
		}
		next = e.End()
	}
	return nil
}

// Plan computes fresh extents for a full rewrite, given the padded
// header length and unpadded data size of each HDU in order. HDUs are
// laid out back to back from offset zero.
func Plan(headerLens, dataSizes []int64) (*Map, error) {
	if len(headerLens) != len(dataSizes) {
		return nil, fmt.Errorf("plan length mismatch: %d headers, %d data sizes",
			len(headerLens), len(dataSizes))
	}
	m := &Map{}
	var off int64
	for i := range headerLens {
		if !binary.IsAligned(headerLens[i]) {
			return nil, fmt.Errorf("HDU %d header length %d not block aligned", i, headerLens[i])
		}
		e := Extent{
			HeaderOffset: off,
			DataOffset:   off + headerLens[i],
			DataSize:     dataSizes[i],
		}
		m.Append(e)
		off = e.End()
	}
	return m, nil
}
