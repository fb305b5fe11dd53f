package fits

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/starbeam-io/go-fits/internal/card"
	"github.com/starbeam-io/go-fits/internal/dtype"
)

// Column describes one field of a table HDU, assembled from the TTYPEn,
// TFORMn, TDISPn and (for ASCII tables) TBCOLn cards.
type Column struct {
	// Name is the TTYPE value, empty when absent.
	Name string

	// Format is the raw TFORM value.
	Format string

	// Code is the data type letter from TFORM.
	Code byte

	// Repeat is the element count per row for binary tables, or the
	// field width for ASCII tables.
	Repeat int

	// Display is the TDISP value, empty when absent.
	Display string

	// Start is the field's byte offset within a row.
	Start int

	width int // bytes per element (binary) or field width (ASCII)
}

// tableBase carries the row geometry shared by both table flavors.
type tableBase struct {
	hduBase
	cols   []Column
	rowLen int
	nrows  int
}

// NumRows returns the number of table rows.
func (t *tableBase) NumRows() int { return t.nrows }

// NumCols returns the number of table columns.
func (t *tableBase) NumCols() int { return len(t.cols) }

// Columns returns the column descriptors in table order.
func (t *tableBase) Columns() []Column { return t.cols }

// ColIndex returns the index of the named column, or -1. Names compare
// case-insensitively with trailing blanks ignored, matching common
// archive practice.
func (t *tableBase) ColIndex(name string) int {
	for i, c := range t.cols {
		if strings.EqualFold(strings.TrimRight(c.Name, " "), strings.TrimRight(name, " ")) {
			return i
		}
	}
	return -1
}

// row returns the raw bytes of one table row.
func (t *tableBase) row(i int) ([]byte, error) {
	if i < 0 || i >= t.nrows {
		return nil, fmt.Errorf("row %d out of range [0,%d)", i, t.nrows)
	}
	raw, err := t.Raw()
	if err != nil {
		return nil, err
	}
	off := i * t.rowLen
	if off+t.rowLen > len(raw) {
		return nil, fmt.Errorf("row %d beyond data region: %w", i, ErrCorruptHeader)
	}
	return raw[off : off+t.rowLen], nil
}

// readGeometry pulls the mandatory table keywords. Both table flavors
// share the NAXIS1 (row length) / NAXIS2 (row count) / TFIELDS layout.
func (t *tableBase) readGeometry() (tfields int, err error) {
	axes, err := t.header.Naxis()
	if err != nil {
		return 0, err
	}
	if len(axes) != 2 {
		return 0, fmt.Errorf("table with NAXIS %d: %w", len(axes), ErrCorruptHeader)
	}
	t.rowLen, t.nrows = axes[0], axes[1]

	n, ok := t.header.Int("TFIELDS")
	if !ok || n < 0 || n > 999 {
		return 0, fmt.Errorf("missing or invalid TFIELDS card: %w", ErrCorruptHeader)
	}
	return int(n), nil
}

func (t *tableBase) verifyTable() error {
	if err := t.requireCards("XTENSION", "BITPIX", "NAXIS", "PCOUNT", "GCOUNT", "TFIELDS"); err != nil {
		return err
	}
	if v, _ := t.header.Int("BITPIX"); v != 8 {
		return fmt.Errorf("table with BITPIX %d: %w", v, ErrCorruptHeader)
	}
	return t.verifyShape()
}

// colCards reads the per-column cards for field n (1-based).
func (t *tableBase) colCards(n int) (name, form, disp string, err error) {
	form, ok := t.header.Str(card.Nth("TFORM", n))
	if !ok {
		return "", "", "", fmt.Errorf("missing TFORM%d card: %w", n, ErrCorruptHeader)
	}
	name, _ = t.header.Str(card.Nth("TTYPE", n))
	disp, _ = t.header.Str(card.Nth("TDISP", n))
	return strings.TrimRight(name, " "), strings.TrimRight(form, " "), strings.TrimRight(disp, " "), nil
}

// TableHDU is an ASCII table extension (XTENSION = 'TABLE'): rows of
// printable characters with fields located by TBCOLn.
type TableHDU struct {
	tableBase
}

func (t *TableHDU) Class() Class { return ClassTable }

func (t *TableHDU) Verify() error {
	if err := t.verifyTable(); err != nil {
		return err
	}
	if v, _ := t.header.Int("PCOUNT"); v != 0 {
		return fmt.Errorf("ASCII table with PCOUNT %d: %w", v, ErrCorruptHeader)
	}
	return nil
}

// parseColumns decodes the TBCOLn/TFORMn cards. ASCII formats are Tw
// or Tw.d with T one of A, I, F, E, D.
func (t *TableHDU) parseColumns() error {
	tfields, err := t.readGeometry()
	if err != nil {
		return err
	}
	t.cols = make([]Column, tfields)
	for i := range t.cols {
		name, form, disp, err := t.colCards(i + 1)
		if err != nil {
			return err
		}
		tbcol, ok := t.header.Int(card.Nth("TBCOL", i+1))
		if !ok || tbcol < 1 {
			return fmt.Errorf("missing or invalid TBCOL%d card: %w", i+1, ErrCorruptHeader)
		}

		code, width, err := parseASCIIForm(form)
		if err != nil {
			return fmt.Errorf("TFORM%d: %v: %w", i+1, err, ErrCorruptHeader)
		}
		t.cols[i] = Column{
			Name:    name,
			Format:  form,
			Code:    code,
			Repeat:  width,
			Display: disp,
			Start:   int(tbcol) - 1,
			width:   width,
		}
		if t.cols[i].Start+width > t.rowLen {
			return fmt.Errorf("TBCOL%d field extends past NAXIS1: %w", i+1, ErrCorruptHeader)
		}
	}
	return nil
}

func parseASCIIForm(form string) (code byte, width int, err error) {
	if form == "" {
		return 0, 0, fmt.Errorf("empty format")
	}
	code = form[0]
	switch code {
	case 'A', 'I', 'F', 'E', 'D':
	default:
		return 0, 0, fmt.Errorf("unknown ASCII table format %q", form)
	}
	spec := form[1:]
	if j := strings.IndexByte(spec, '.'); j >= 0 {
		spec = spec[:j]
	}
	width, err = strconv.Atoi(spec)
	if err != nil || width < 1 {
		return 0, 0, fmt.Errorf("bad field width in %q", form)
	}
	return code, width, nil
}

// Value returns the typed value of one cell: string for A fields,
// int64 for I, float64 for F, E and D.
func (t *TableHDU) Value(col, row int) (interface{}, error) {
	if col < 0 || col >= len(t.cols) {
		return nil, fmt.Errorf("column %d out of range [0,%d)", col, len(t.cols))
	}
	r, err := t.row(row)
	if err != nil {
		return nil, err
	}
	c := t.cols[col]
	field := strings.TrimSpace(string(r[c.Start : c.Start+c.width]))

	switch c.Code {
	case 'A':
		return strings.TrimRight(string(r[c.Start:c.Start+c.width]), " "), nil
	case 'I':
		if field == "" {
			return int64(0), nil
		}
		v, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("column %d row %d: %v", col, row, err)
		}
		return v, nil
	case 'F', 'E', 'D':
		if field == "" {
			return float64(0), nil
		}
		fs := strings.Replace(field, "D", "E", 1)
		fs = strings.Replace(fs, "d", "e", 1)
		v, err := strconv.ParseFloat(fs, 64)
		if err != nil {
			return nil, fmt.Errorf("column %d row %d: %v", col, row, err)
		}
		return v, nil
	}
	return nil, fmt.Errorf("format %q: %w", t.cols[col].Format, ErrUnsupported)
}

// FormatValue renders one cell per the column's TDISP, falling back to
// the TFORM-derived default.
func (t *TableHDU) FormatValue(col, row int) (string, error) {
	v, err := t.Value(col, row)
	if err != nil {
		return "", err
	}
	disp := t.cols[col].Display
	if disp == "" {
		disp = t.cols[col].Format
	}
	return formatDisplay(disp, v)
}

// Float64s returns a whole numeric column as physical float64 values.
func (t *TableHDU) Float64s(col int) ([]float64, error) {
	return columnFloats(t, col)
}

// Int64s returns a whole integer column.
func (t *TableHDU) Int64s(col int) ([]int64, error) {
	return columnInts(t, col)
}

// Strings returns a whole column rendered as strings.
func (t *TableHDU) Strings(col int) ([]string, error) {
	return columnStrings(t, col)
}

// BinTableHDU is a binary table extension (XTENSION = 'BINTABLE'):
// rows of packed big-endian values described by rT repeat-type formats.
type BinTableHDU struct {
	tableBase
}

func (t *BinTableHDU) Class() Class { return ClassBinTable }

func (t *BinTableHDU) Verify() error {
	return t.verifyTable()
}

// binElemWidth returns the per-element byte width for a binary table
// type code. X is bit-packed and handled by the caller.
func binElemWidth(code byte) (int, bool) {
	switch code {
	case 'L', 'B', 'A':
		return 1, true
	case 'I':
		return 2, true
	case 'J', 'E':
		return 4, true
	case 'K', 'D', 'C':
		return 8, true
	case 'M':
		return 16, true
	case 'P':
		return 8, true
	case 'Q':
		return 16, true
	}
	return 0, false
}

// parseColumns decodes the TFORMn cards and computes row offsets. Bit
// (X) and variable-length (P, Q) columns are laid out so later columns
// stay addressable, but their values read as unsupported.
func (t *BinTableHDU) parseColumns() error {
	tfields, err := t.readGeometry()
	if err != nil {
		return err
	}
	t.cols = make([]Column, tfields)
	off := 0
	for i := range t.cols {
		name, form, disp, err := t.colCards(i + 1)
		if err != nil {
			return err
		}
		repeat, code, err := parseBinForm(form)
		if err != nil {
			return fmt.Errorf("TFORM%d: %v: %w", i+1, err, ErrCorruptHeader)
		}

		width, _ := binElemWidth(code)
		bytes := repeat * width
		if code == 'X' {
			width = 1
			bytes = (repeat + 7) / 8
		}
		if code == 'P' || code == 'Q' {
			// Descriptors are one (count, offset) pair per row
			// regardless of repeat.
			bytes = width
		}

		t.cols[i] = Column{
			Name:    name,
			Format:  form,
			Code:    code,
			Repeat:  repeat,
			Display: disp,
			Start:   off,
			width:   width,
		}
		off += bytes
	}
	if off > t.rowLen {
		return fmt.Errorf("TFORM fields span %d bytes but NAXIS1 is %d: %w", off, t.rowLen, ErrCorruptHeader)
	}
	return nil
}

func parseBinForm(form string) (repeat int, code byte, err error) {
	if form == "" {
		return 0, 0, fmt.Errorf("empty format")
	}
	i := 0
	for i < len(form) && form[i] >= '0' && form[i] <= '9' {
		i++
	}
	repeat = 1
	if i > 0 {
		repeat, err = strconv.Atoi(form[:i])
		if err != nil || repeat < 0 {
			return 0, 0, fmt.Errorf("bad repeat count in %q", form)
		}
	}
	if i == len(form) {
		return 0, 0, fmt.Errorf("missing type code in %q", form)
	}
	code = form[i]
	if _, ok := binElemWidth(code); !ok && code != 'X' {
		return 0, 0, fmt.Errorf("unknown binary table format %q", form)
	}
	return repeat, code, nil
}

// Value returns the typed value of one cell. Scalar cells yield bool,
// uint8, int16, int32, int64, float32, float64, complex64 or
// complex128; repeat counts above one yield the corresponding slice;
// A fields yield a trimmed string. Bit and variable-length columns
// report ErrUnsupported.
func (t *BinTableHDU) Value(col, row int) (interface{}, error) {
	if col < 0 || col >= len(t.cols) {
		return nil, fmt.Errorf("column %d out of range [0,%d)", col, len(t.cols))
	}
	r, err := t.row(row)
	if err != nil {
		return nil, err
	}
	c := t.cols[col]

	switch c.Code {
	case 'X', 'P', 'Q':
		return nil, fmt.Errorf("format %q: %w", c.Format, ErrUnsupported)
	case 'A':
		return strings.TrimRight(string(r[c.Start:c.Start+c.Repeat]), " \x00"), nil
	}

	field := r[c.Start : c.Start+c.Repeat*c.width]
	if c.Code == 'L' {
		vals := make([]bool, c.Repeat)
		for i := range vals {
			vals[i] = field[i] == 'T'
		}
		if c.Repeat == 1 {
			return vals[0], nil
		}
		return vals, nil
	}

	return decodeBinField(c.Code, field, c.Repeat)
}

func decodeBinField(code byte, field []byte, repeat int) (interface{}, error) {
	scalar := repeat == 1
	switch code {
	case 'B':
		vals, err := dtype.Decode(dtype.Uint8, field, repeat)
		return scalarOf(vals, scalar), err
	case 'I':
		vals, err := dtype.Decode(dtype.Int16, field, repeat)
		return scalarOf(vals, scalar), err
	case 'J':
		vals, err := dtype.Decode(dtype.Int32, field, repeat)
		return scalarOf(vals, scalar), err
	case 'K':
		vals, err := dtype.Decode(dtype.Int64, field, repeat)
		return scalarOf(vals, scalar), err
	case 'E':
		vals, err := dtype.Decode(dtype.Float32, field, repeat)
		return scalarOf(vals, scalar), err
	case 'D':
		vals, err := dtype.Decode(dtype.Float64, field, repeat)
		return scalarOf(vals, scalar), err
	case 'C':
		parts, err := dtype.Decode(dtype.Float32, field, 2*repeat)
		if err != nil {
			return nil, err
		}
		f := parts.([]float32)
		vals := make([]complex64, repeat)
		for i := range vals {
			vals[i] = complex(f[2*i], f[2*i+1])
		}
		return scalarOf(vals, scalar), nil
	case 'M':
		parts, err := dtype.Decode(dtype.Float64, field, 2*repeat)
		if err != nil {
			return nil, err
		}
		f := parts.([]float64)
		vals := make([]complex128, repeat)
		for i := range vals {
			vals[i] = complex(f[2*i], f[2*i+1])
		}
		return scalarOf(vals, scalar), nil
	}
	return nil, fmt.Errorf("format code %c: %w", code, ErrUnsupported)
}

// scalarOf unwraps single-element slices so scalar cells read as
// scalars.
func scalarOf(vals interface{}, scalar bool) interface{} {
	if !scalar {
		return vals
	}
	switch v := vals.(type) {
	case []uint8:
		return v[0]
	case []int16:
		return v[0]
	case []int32:
		return v[0]
	case []int64:
		return v[0]
	case []float32:
		return v[0]
	case []float64:
		return v[0]
	case []complex64:
		return v[0]
	case []complex128:
		return v[0]
	}
	return vals
}

// FormatValue renders one scalar cell per the column's TDISP.
func (t *BinTableHDU) FormatValue(col, row int) (string, error) {
	v, err := t.Value(col, row)
	if err != nil {
		return "", err
	}
	return formatDisplay(t.cols[col].Display, v)
}

// Float64s returns a whole numeric column as float64 values. Columns
// with repeat counts above one are rejected.
func (t *BinTableHDU) Float64s(col int) ([]float64, error) {
	return columnFloats(t, col)
}

// Int64s returns a whole integer column.
func (t *BinTableHDU) Int64s(col int) ([]int64, error) {
	return columnInts(t, col)
}

// Strings returns a whole column rendered as strings.
func (t *BinTableHDU) Strings(col int) ([]string, error) {
	return columnStrings(t, col)
}

// valuer is the cell access both table flavors share.
type valuer interface {
	Value(col, row int) (interface{}, error)
	NumRows() int
	FormatValue(col, row int) (string, error)
}

func columnFloats(t valuer, col int) ([]float64, error) {
	out := make([]float64, t.NumRows())
	for i := range out {
		v, err := t.Value(col, i)
		if err != nil {
			return nil, err
		}
		f, ok := toFloat64(v)
		if !ok {
			return nil, fmt.Errorf("column %d holds %T, not a scalar number", col, v)
		}
		out[i] = f
	}
	return out, nil
}

func columnInts(t valuer, col int) ([]int64, error) {
	out := make([]int64, t.NumRows())
	for i := range out {
		v, err := t.Value(col, i)
		if err != nil {
			return nil, err
		}
		n, ok := toInt64(v)
		if !ok {
			return nil, fmt.Errorf("column %d holds %T, not a scalar integer", col, v)
		}
		out[i] = n
	}
	return out, nil
}

func columnStrings(t valuer, col int) ([]string, error) {
	out := make([]string, t.NumRows())
	for i := range out {
		s, err := t.FormatValue(col, i)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case uint8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case uint8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

// formatDisplay renders a value per a FITS display format (TDISP):
// Aw, Iw[.m], Bw, Ow, Zw, Fw.d, Ew.d, Dw.d, Gw.d. An empty or
// unparsable format falls back to a type-appropriate default.
func formatDisplay(disp string, v interface{}) (string, error) {
	code, w, d, ok := parseDisplay(disp)
	if !ok {
		return defaultDisplay(v), nil
	}

	switch code {
	case 'A':
		s, isStr := v.(string)
		if !isStr {
			s = defaultDisplay(v)
		}
		return fmt.Sprintf("%*s", w, s), nil
	case 'I', 'B', 'O', 'Z':
		n, isInt := toInt64(v)
		if !isInt {
			return "", fmt.Errorf("display %q needs an integer, got %T", disp, v)
		}
		switch code {
		case 'I':
			return fmt.Sprintf("%*d", w, n), nil
		case 'B':
			return fmt.Sprintf("%*s", w, strconv.FormatInt(n, 2)), nil
		case 'O':
			return fmt.Sprintf("%*o", w, n), nil
		default:
			return fmt.Sprintf("%*X", w, n), nil
		}
	case 'F', 'E', 'D', 'G':
		f, isFloat := toFloat64(v)
		if !isFloat {
			return "", fmt.Errorf("display %q needs a number, got %T", disp, v)
		}
		switch code {
		case 'F':
			return fmt.Sprintf("%*.*f", w, d, f), nil
		case 'G':
			return fmt.Sprintf("%*.*G", w, d, f), nil
		default:
			s := fmt.Sprintf("%*.*E", w, d, f)
			if code == 'D' {
				s = strings.Replace(s, "E", "D", 1)
			}
			return s, nil
		}
	}
	return defaultDisplay(v), nil
}

func parseDisplay(disp string) (code byte, w, d int, ok bool) {
	if disp == "" {
		return 0, 0, 0, false
	}
	code = disp[0]
	switch code {
	case 'A', 'I', 'B', 'O', 'Z', 'F', 'E', 'D', 'G':
	default:
		return 0, 0, 0, false
	}
	spec := disp[1:]
	// E formats may carry a sub-code, e.g. EN12.5 or ES12.5.
	if code == 'E' && len(spec) > 0 && (spec[0] == 'N' || spec[0] == 'S') {
		spec = spec[1:]
	}
	frac := ""
	if j := strings.IndexByte(spec, '.'); j >= 0 {
		spec, frac = spec[:j], spec[j+1:]
	}
	w, err := strconv.Atoi(spec)
	if err != nil || w < 1 {
		return 0, 0, 0, false
	}
	if frac != "" {
		// Exponent width suffixes (Ew.dEe) are ignored.
		if k := strings.IndexByte(frac, 'E'); k >= 0 {
			frac = frac[:k]
		}
		if d, err = strconv.Atoi(frac); err != nil || d < 0 {
			return 0, 0, 0, false
		}
	}
	return code, w, d, true
}

func defaultDisplay(v interface{}) string {
	switch n := v.(type) {
	case bool:
		if n {
			return "T"
		}
		return "F"
	case float32:
		return strconv.FormatFloat(float64(n), 'G', -1, 32)
	case float64:
		return strconv.FormatFloat(n, 'G', -1, 64)
	case string:
		return n
	}
	return fmt.Sprint(v)
}
