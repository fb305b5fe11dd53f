package fits

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/starbeam-io/go-fits/internal/binary"
	"github.com/starbeam-io/go-fits/internal/layout"
)

// AddHDU appends an HDU to a writable file. The first HDU must be a
// primary (SIMPLE) HDU; extensions follow in order.
func (f *File) AddHDU(hdu HDU) error {
	if f.closed {
		return ErrClosed
	}
	if !f.writable {
		return ErrReadOnly
	}
	b := hdu.base()
	if len(f.hdus) == 0 && !b.primary {
		return fmt.Errorf("first HDU must be primary: %w", ErrDataMismatch)
	}
	if len(f.hdus) > 0 && b.primary {
		return fmt.Errorf("primary HDU must come first: %w", ErrDataMismatch)
	}
	f.hdus = append(f.hdus, hdu)
	f.appended = true
	return nil
}

// StampChecksums marks every HDU so the next Flush writes fresh
// CHECKSUM and DATASUM cards, whether or not anything else changed.
func (f *File) StampChecksums() {
	f.stamp = true
	for _, hdu := range f.hdus {
		h := hdu.Header()
		h.Set("CHECKSUM", zeroChecksum, "HDU checksum updated at write")
		h.Set("DATASUM", "0", "data unit checksum updated at write")
	}
}

func (f *File) needsFlush() bool {
	if f.appended {
		return true
	}
	for _, hdu := range f.hdus {
		b := hdu.base()
		if b.header.Modified() || b.dataModified {
			return true
		}
	}
	return false
}

// Flush writes pending changes.
//
// When only headers changed and each still fits its original on-disk
// span, the headers are rewritten in place, space-padded to the span
// so the data offsets hold. Anything structural — appended HDUs,
// replaced data, a header that outgrew its span — rewrites the whole
// file through a temp file in the same directory, renamed over the
// original so readers never see a half-written file.
func (f *File) Flush() error {
	if f.closed {
		return ErrClosed
	}
	if !f.writable {
		return ErrReadOnly
	}
	if !f.needsFlush() {
		return nil
	}

	if f.lmap.Len() == 0 {
		// Fresh file from Create: first write is sequential.
		if err := f.writeAll(f.writer); err != nil {
			return err
		}
		f.appended = false
		return f.sync()
	}

	if f.canFlushInPlace() {
		if err := f.flushInPlace(); err != nil {
			return err
		}
		return f.sync()
	}
	return f.rewrite()
}

// canFlushInPlace reports whether this flush is header-only and every
// modified header, once stamped and serialized, fits its span.
func (f *File) canFlushInPlace() bool {
	if f.appended || f.lmap.Len() != len(f.hdus) {
		return false
	}
	for i, hdu := range f.hdus {
		b := hdu.base()
		if b.dataModified {
			return false
		}
		if !b.header.Modified() {
			continue
		}
		hbytes, err := f.stampedHeader(hdu, f.lmap.At(i).HeaderSize())
		if err != nil {
			return false
		}
		if !f.lmap.FitsInPlace(i, int64(len(hbytes))) {
			return false
		}
	}
	return true
}

func (f *File) flushInPlace() error {
	for i, hdu := range f.hdus {
		b := hdu.base()
		if !b.header.Modified() {
			continue
		}
		span := f.lmap.At(i).HeaderSize()
		hbytes, err := f.stampedHeader(hdu, span)
		if err != nil {
			return err
		}
		w := f.writer.At(f.lmap.At(i).HeaderOffset)
		if err := w.WriteBytes(hbytes); err != nil {
			return err
		}
		// Fill the rest of the original span so the data offset holds.
		if err := w.WriteSpaces(span - int64(len(hbytes))); err != nil {
			return err
		}
		b.header.clearModified()
		f.logger.Debug("rewrote header in place",
			zap.Int("hdu", i), zap.Int64("offset", f.lmap.At(i).HeaderOffset))
	}
	return nil
}

// rewrite streams the whole file to a temp file in the same directory
// and renames it over the original.
func (f *File) rewrite() error {
	if f.path == "" {
		return fmt.Errorf("reader-backed file cannot be rewritten: %w", ErrReadOnly)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".fits-rewrite-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := f.writeAll(binary.NewWriter(tmp)); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return err
	}

	// The old handle now points at an unlinked inode; reopen.
	old := f.osfile
	nf, err := os.OpenFile(f.path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	if old != nil {
		old.Close()
	}
	f.osfile = nf
	f.reader = binary.NewReader(nf)
	f.writer = binary.NewWriter(nf)
	f.appended = false
	f.logger.Debug("rewrote file", zap.String("path", f.path), zap.Int64("size", f.size))
	return nil
}

// writeAll serializes every HDU back to back from offset zero and
// installs the fresh layout map. Data regions are loaded before the
// write so a rewrite over the source file cannot eat its own input.
func (f *File) writeAll(w *binary.Writer) error {
	newMap := &layout.Map{}
	for i, hdu := range f.hdus {
		b := hdu.base()
		data, err := hdu.Raw()
		if err != nil {
			return fmt.Errorf("HDU %d: %w", i, err)
		}

		hbytes, err := f.stampedHeader(hdu, 0)
		if err != nil {
			return fmt.Errorf("HDU %d: %w", i, err)
		}

		hduW := w.At(newMap.EOF())
		if err := hduW.WriteBytes(hbytes); err != nil {
			return fmt.Errorf("HDU %d header: %w", i, err)
		}
		if err := hduW.WriteBytes(data); err != nil {
			return fmt.Errorf("HDU %d data: %w", i, err)
		}
		if err := hduW.WritePadding(); err != nil {
			return fmt.Errorf("HDU %d padding: %w", i, err)
		}

		newMap.Append(layout.Extent{
			HeaderOffset: newMap.EOF(),
			DataOffset:   newMap.EOF() + int64(len(hbytes)),
			DataSize:     int64(len(data)),
		})
		b.extent = newMap.At(i)
		b.file = f
		b.header.clearModified()
		b.dataModified = false
	}
	if err := newMap.Validate(); err != nil {
		return err
	}
	f.lmap = newMap
	f.size = newMap.EOF()
	return nil
}

const zeroChecksum = "0000000000000000"

// stampedHeader serializes an HDU's header, stamping CHECKSUM and
// DATASUM first when the file stamps on write or the header already
// carries the cards. span is the on-disk header span the bytes will be
// padded to, or 0 for a freshly laid out header.
func (f *File) stampedHeader(hdu HDU, span int64) ([]byte, error) {
	h := hdu.Header()
	if f.stamp || h.Has("CHECKSUM") || h.Has("DATASUM") {
		data, err := hdu.Raw()
		if err != nil {
			return nil, err
		}
		if err := stampChecksum(h, data, span); err != nil {
			return nil, err
		}
	}
	return h.Bytes()
}

// stampChecksum fills in the DATASUM and CHECKSUM cards so the whole
// HDU — header padded to span, data zero-padded to a block boundary —
// sums to all ones. The CHECKSUM value is computed with its own field
// zeroed, then substituted; the encoding makes the substitution land
// on the complement exactly.
func stampChecksum(h *Header, data []byte, span int64) error {
	// Zero padding does not move the sum, so the unpadded data region
	// sums the same as the padded one.
	datasum := binary.Sum32(data, 0)
	h.Set("DATASUM", strconv.FormatUint(uint64(datasum), 10), "data unit checksum")
	h.Set("CHECKSUM", zeroChecksum, "HDU checksum")

	hbytes, err := h.Bytes()
	if err != nil {
		return err
	}
	if span > int64(len(hbytes)) {
		padded := make([]byte, span)
		copy(padded, hbytes)
		for i := len(hbytes); i < len(padded); i++ {
			padded[i] = ' '
		}
		hbytes = padded
	}

	sum := binary.Sum32(hbytes, datasum)
	h.Set("CHECKSUM", binary.Encode16(^sum), "HDU checksum")
	return nil
}

func (f *File) sync() error {
	if f.osfile == nil {
		return nil
	}
	return f.osfile.Sync()
}
