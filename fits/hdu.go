package fits

import (
	"fmt"
	"strings"

	"github.com/starbeam-io/go-fits/internal/layout"
)

// Class identifies the kind of an HDU, decided by header inspection.
type Class int

const (
	ClassImage Class = iota
	ClassTable
	ClassBinTable
	ClassRaw
	ClassCorrupted
)

func (c Class) String() string {
	switch c {
	case ClassImage:
		return "image"
	case ClassTable:
		return "table"
	case ClassBinTable:
		return "bintable"
	case ClassRaw:
		return "raw"
	case ClassCorrupted:
		return "corrupted"
	}
	return fmt.Sprintf("Class(%d)", int(c))
}

// HDU is a single header-data unit. Concrete types are *ImageHDU,
// *TableHDU, *BinTableHDU, *RawHDU and *CorruptedHDU.
type HDU interface {
	// Header returns the HDU's header, which may be mutated before a
	// rewrite.
	Header() *Header

	// Class reports the HDU kind chosen by the dispatch registry.
	Class() Class

	// Name returns the EXTNAME value, or "PRIMARY" for the primary HDU.
	Name() string

	// Ver returns the EXTVER value, defaulting to 1.
	Ver() int

	// Size returns the unpadded data region size in bytes.
	Size() int64

	// Raw returns the raw big-endian data region, without padding.
	// File-backed HDUs load lazily on first call and cache the result.
	Raw() ([]byte, error)

	// Verify checks the mandatory keywords for the HDU's class.
	Verify() error

	base() *hduBase
}

// hduBase carries the state shared by every HDU kind: the header, the
// on-disk extent, and the lazily loaded data region.
type hduBase struct {
	file         *File
	header       *Header
	extent       layout.Extent
	data         []byte
	loaded       bool
	dataModified bool
	primary      bool
}

func (h *hduBase) Header() *Header { return h.header }
func (h *hduBase) base() *hduBase  { return h }

func (h *hduBase) Name() string {
	if name, ok := h.header.Str("EXTNAME"); ok {
		return name
	}
	if h.primary {
		return "PRIMARY"
	}
	return ""
}

func (h *hduBase) Ver() int {
	if v, ok := h.header.Int("EXTVER"); ok {
		return int(v)
	}
	return 1
}

func (h *hduBase) Size() int64 {
	if h.loaded {
		return int64(len(h.data))
	}
	if h.file != nil {
		return h.extent.DataSize
	}
	size, err := h.header.DataSize()
	if err != nil {
		return 0
	}
	return size
}

// Raw loads the data region on first access and caches it. In-memory
// HDUs with no assigned data return nil.
func (h *hduBase) Raw() ([]byte, error) {
	if h.loaded {
		return h.data, nil
	}
	if h.file == nil || h.extent.DataSize == 0 {
		return nil, nil
	}
	if h.file.closed {
		return nil, ErrClosed
	}
	buf, err := h.file.reader.At(h.extent.DataOffset).ReadBytes(int(h.extent.DataSize))
	if err != nil {
		return nil, fmt.Errorf("reading data region at %d: %w", h.extent.DataOffset, err)
	}
	h.data = buf
	h.loaded = true
	return h.data, nil
}

// setRaw replaces the data region in memory.
func (h *hduBase) setRaw(data []byte) {
	h.data = data
	h.loaded = true
	h.dataModified = true
}

// requireCards checks that every listed keyword is present.
func (h *hduBase) requireCards(keywords ...string) error {
	for _, kw := range keywords {
		if !h.header.Has(kw) {
			return fmt.Errorf("missing mandatory %s card: %w", kw, ErrCorruptHeader)
		}
	}
	return nil
}

// verifyShape checks BITPIX and the NAXIS chain.
func (h *hduBase) verifyShape() error {
	if _, err := h.header.Bitpix(); err != nil {
		return err
	}
	_, err := h.header.Naxis()
	return err
}

// MatchFunc inspects a parsed header and reports whether its HDU type
// claims the HDU. Matchers run against possibly hostile headers; a
// panicking matcher is treated as no match.
type MatchFunc func(h *Header, primary bool) bool

// BuildFunc constructs the HDU once a matcher claims the header. The
// raw HDU carries the header and lazy data access; custom HDU types
// embed it to satisfy the HDU interface.
type BuildFunc func(raw *RawHDU) (HDU, error)

type hduType struct {
	match MatchFunc
	build BuildFunc
}

// hduRegistry is ordered; the first matching entry wins. Registered
// types are consulted before the built-in ones.
var hduRegistry []hduType

// RegisterHDU adds an HDU type to the front of the dispatch order,
// letting callers claim headers before the built-in types do. Not safe
// for concurrent use with open files.
func RegisterHDU(match MatchFunc, build BuildFunc) {
	hduRegistry = append([]hduType{{match, build}}, hduRegistry...)
}

func init() {
	hduRegistry = []hduType{
		{matchImage, buildImage},
		{matchTable, buildTable},
		{matchBinTable, buildBinTable},
	}
}

// dispatch selects the HDU type for a parsed header. No match, or a
// build failure, falls back to RawHDU so one odd extension does not
// make the rest of the file unreachable.
func dispatch(base hduBase) HDU {
	raw := &RawHDU{hduBase: base}
	for _, t := range hduRegistry {
		if !safeMatch(t.match, base.header, base.primary) {
			continue
		}
		hdu, err := t.build(raw)
		if err != nil {
			break
		}
		return hdu
	}
	return raw
}

func safeMatch(match MatchFunc, h *Header, primary bool) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return match(h, primary)
}

// xtensionName returns the trimmed XTENSION value.
func xtensionName(h *Header) string {
	s, _ := h.Str("XTENSION")
	return strings.TrimRight(s, " ")
}

func matchImage(h *Header, primary bool) bool {
	if primary {
		// Random groups files abuse the primary image layout; they get
		// raw treatment.
		if groups, _ := h.Bool("GROUPS"); groups {
			if axes, err := h.Naxis(); err == nil && len(axes) > 0 && axes[0] == 0 {
				return false
			}
		}
		simple, ok := h.Bool("SIMPLE")
		return ok && simple
	}
	return xtensionName(h) == "IMAGE"
}

func matchTable(h *Header, primary bool) bool {
	return !primary && xtensionName(h) == "TABLE"
}

func matchBinTable(h *Header, primary bool) bool {
	if primary {
		return false
	}
	name := xtensionName(h)
	return name == "BINTABLE" || name == "A3DTABLE"
}

func buildImage(raw *RawHDU) (HDU, error) {
	return &ImageHDU{hduBase: raw.hduBase}, nil
}

func buildTable(raw *RawHDU) (HDU, error) {
	hdu := &TableHDU{tableBase{hduBase: raw.hduBase}}
	if err := hdu.parseColumns(); err != nil {
		return nil, err
	}
	return hdu, nil
}

func buildBinTable(raw *RawHDU) (HDU, error) {
	hdu := &BinTableHDU{tableBase{hduBase: raw.hduBase}}
	if err := hdu.parseColumns(); err != nil {
		return nil, err
	}
	return hdu, nil
}

// RawHDU holds an HDU whose header parsed cleanly but matched no known
// type: nonstandard conforming extensions, random groups, and anything
// a failed build falls back to. The data region is available verbatim.
type RawHDU struct {
	hduBase
}

func (h *RawHDU) Class() Class { return ClassRaw }

func (h *RawHDU) Verify() error {
	if h.primary {
		if err := h.requireCards("SIMPLE"); err != nil {
			return err
		}
	} else if err := h.requireCards("XTENSION", "PCOUNT", "GCOUNT"); err != nil {
		return err
	}
	return h.verifyShape()
}

// CorruptedHDU holds the remainder of a file whose header could not be
// parsed. The data region spans from the end of the last readable
// header block to the end of the file; its size is a guess, not a
// computation.
type CorruptedHDU struct {
	hduBase
	parseErr error
}

func (h *CorruptedHDU) Class() Class { return ClassCorrupted }

// Err returns the header parse failure that produced this HDU.
func (h *CorruptedHDU) Err() error { return h.parseErr }

func (h *CorruptedHDU) Verify() error {
	return fmt.Errorf("HDU at offset %d: %v: %w", h.extent.HeaderOffset, h.parseErr, ErrCorruptHeader)
}
