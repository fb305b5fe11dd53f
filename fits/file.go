package fits

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/starbeam-io/go-fits/internal/binary"
	"github.com/starbeam-io/go-fits/internal/layout"
)

// File is an open FITS file: an ordered sequence of HDUs plus the
// layout map recording where each one lives on disk.
//
// A File is not safe for concurrent mutation. Concurrent reads of
// distinct, already-loaded HDUs are fine.
type File struct {
	path   string
	osfile *os.File
	reader *binary.Reader
	writer *binary.Writer
	size   int64

	hdus []HDU
	lmap *layout.Map

	logger   *zap.Logger
	writable bool
	closed   bool
	appended bool

	verifyOnOpen bool
	strict       bool
	stamp        bool
}

// Open opens a FITS file for reading. Every header is parsed up front;
// data regions load lazily on first access.
func Open(path string, opts ...Option) (*File, error) {
	osf, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	st, err := osf.Stat()
	if err != nil {
		osf.Close()
		return nil, err
	}
	f := newFile(path, osf, st.Size(), opts)
	if err := f.finishOpen(); err != nil {
		osf.Close()
		return nil, err
	}
	return f, nil
}

// OpenUpdate opens a FITS file for in-place modification. Flush writes
// changed headers back; see Flush for the rewrite policy.
func OpenUpdate(path string, opts ...Option) (*File, error) {
	osf, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	st, err := osf.Stat()
	if err != nil {
		osf.Close()
		return nil, err
	}
	f := newFile(path, osf, st.Size(), opts)
	f.writable = true
	f.writer = binary.NewWriter(osf)
	if err := f.finishOpen(); err != nil {
		osf.Close()
		return nil, err
	}
	return f, nil
}

// OpenReader parses a FITS file from any io.ReaderAt, such as a
// bytes.Reader or a network-backed blob. The result is read only.
func OpenReader(r io.ReaderAt, size int64, opts ...Option) (*File, error) {
	f := newFile("", nil, size, opts)
	f.reader = binary.NewReader(r)
	if err := f.finishOpen(); err != nil {
		return nil, err
	}
	return f, nil
}

// Create creates a new FITS file. HDUs added with AddHDU are written
// out on Flush or Close, primary first.
func Create(path string, opts ...Option) (*File, error) {
	osf, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	f := newFile(path, osf, 0, opts)
	f.writable = true
	f.writer = binary.NewWriter(osf)
	return f, nil
}

func newFile(path string, osf *os.File, size int64, opts []Option) *File {
	f := &File{
		path:   path,
		osfile: osf,
		size:   size,
		lmap:   &layout.Map{},
		logger: zap.NewNop(),
	}
	if osf != nil {
		f.reader = binary.NewReader(osf)
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *File) finishOpen() error {
	if err := f.scan(); err != nil {
		return err
	}
	if f.verifyOnOpen {
		if err := f.VerifyChecksums(); err != nil {
			return err
		}
	}
	return nil
}

// scan walks the file header by header, computing each HDU's extent
// from its mandatory keywords and dispatching it to an HDU type. A
// header that cannot be parsed turns the remainder of the file into a
// CorruptedHDU unless the file is strict.
func (f *File) scan() error {
	var off int64
	for off < f.size {
		hdr, span, err := parseHeader(f.reader.At(off), f.strict)
		if errors.Is(err, io.EOF) {
			break
		}
		primary := off == 0
		if err == nil && primary && (hdr.Len() == 0 || hdr.Card(0).Keyword != "SIMPLE") {
			return fmt.Errorf("first card is not SIMPLE: %w", ErrNotFITS)
		}

		var dataSize int64
		if err == nil {
			dataSize, err = hdr.DataSize()
		}
		if err != nil {
			if f.strict {
				return fmt.Errorf("HDU %d at offset %d: %w", len(f.hdus), off, err)
			}
			f.appendCorrupted(off, span, hdr, err)
			break
		}

		extent := layout.Extent{
			HeaderOffset: off,
			DataOffset:   off + span,
			DataSize:     dataSize,
		}
		if extent.DataOffset+extent.DataSize > f.size {
			if f.strict {
				return fmt.Errorf("HDU %d data region truncated: need %d bytes past offset %d: %w",
					len(f.hdus), extent.DataSize, extent.DataOffset, ErrCorruptHeader)
			}
			f.logger.Warn("truncated data region",
				zap.Int("hdu", len(f.hdus)),
				zap.Int64("expected", extent.DataSize),
				zap.Int64("available", f.size-extent.DataOffset))
			extent.DataSize = f.size - extent.DataOffset
			f.appendHDU(extent, hdr, primary)
			break
		}

		f.appendHDU(extent, hdr, primary)
		off = extent.End()
	}

	if len(f.hdus) == 0 {
		return fmt.Errorf("no HDUs found: %w", ErrNotFITS)
	}
	return nil
}

func (f *File) appendHDU(extent layout.Extent, hdr *Header, primary bool) {
	base := hduBase{file: f, header: hdr, extent: extent, primary: primary}
	hdu := dispatch(base)
	f.hdus = append(f.hdus, hdu)
	f.lmap.Append(extent)
	f.logger.Debug("scanned HDU",
		zap.Int("index", len(f.hdus)-1),
		zap.Stringer("class", hdu.Class()),
		zap.Int64("offset", extent.HeaderOffset),
		zap.Int64("size", extent.DataSize))
}

// appendCorrupted records the unreadable remainder of the file as a
// single HDU so the bytes stay reachable.
func (f *File) appendCorrupted(off, span int64, hdr *Header, parseErr error) {
	if hdr == nil {
		hdr = NewHeader()
	}
	dataOff := off + span
	size := f.size - dataOff
	if size < 0 {
		size = 0
	}
	extent := layout.Extent{HeaderOffset: off, DataOffset: dataOff, DataSize: size}
	f.hdus = append(f.hdus, &CorruptedHDU{
		hduBase:  hduBase{file: f, header: hdr, extent: extent, primary: off == 0},
		parseErr: parseErr,
	})
	f.lmap.Append(extent)
	f.logger.Warn("unreadable HDU, keeping remainder as corrupted",
		zap.Int64("offset", off), zap.Error(parseErr))
}

// NumHDUs returns the number of HDUs.
func (f *File) NumHDUs() int {
	return len(f.hdus)
}

// HDU returns the i-th HDU.
func (f *File) HDU(i int) (HDU, error) {
	if i < 0 || i >= len(f.hdus) {
		return nil, fmt.Errorf("HDU %d out of range [0,%d): %w", i, len(f.hdus), ErrNotFound)
	}
	return f.hdus[i], nil
}

// Primary returns the first HDU.
func (f *File) Primary() (HDU, error) {
	return f.HDU(0)
}

// ByName returns the first HDU whose EXTNAME matches, ignoring case
// and trailing blanks.
func (f *File) ByName(name string) (HDU, error) {
	return f.ByNameVer(name, 0)
}

// ByNameVer returns the HDU matching both EXTNAME and EXTVER. A ver of
// 0 matches any version.
func (f *File) ByNameVer(name string, ver int) (HDU, error) {
	for _, hdu := range f.hdus {
		if !equalName(hdu.Name(), name) {
			continue
		}
		if ver == 0 || hdu.Ver() == ver {
			return hdu, nil
		}
	}
	return nil, fmt.Errorf("no HDU named %q ver %d: %w", name, ver, ErrNotFound)
}

func equalName(a, b string) bool {
	return strings.EqualFold(strings.TrimRight(a, " "), strings.TrimRight(b, " "))
}

// Each calls fn for every HDU in file order, stopping at the first
// error.
func (f *File) Each(fn func(i int, hdu HDU) error) error {
	for i, hdu := range f.hdus {
		if err := fn(i, hdu); err != nil {
			return err
		}
	}
	return nil
}

// Path returns the file path, empty for reader-backed files.
func (f *File) Path() string {
	return f.path
}

// Size returns the file size in bytes as of the last scan or flush.
func (f *File) Size() int64 {
	return f.size
}

// Close flushes pending changes on writable files and releases the
// underlying file handle.
func (f *File) Close() error {
	if f.closed {
		return ErrClosed
	}
	var flushErr error
	if f.writable && f.needsFlush() {
		flushErr = f.Flush()
	}
	f.closed = true
	if f.osfile != nil {
		if err := f.osfile.Close(); err != nil && flushErr == nil {
			return err
		}
	}
	return flushErr
}
