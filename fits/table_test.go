package fits

import (
	"bytes"
	encbin "encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/starbeam-io/go-fits/internal/binary"
)

// openTableFile assembles an in-memory file from a dataless primary,
// the given extension header, and its data region.
func openTableFile(t *testing.T, hdr *Header, data []byte) *File {
	t.Helper()
	var buf bytes.Buffer

	pb, err := NewPrimary().Header().Bytes()
	require.NoError(t, err)
	buf.Write(pb)

	hb, err := hdr.Bytes()
	require.NoError(t, err)
	buf.Write(hb)

	buf.Write(data)
	buf.Write(make([]byte, binary.PadLength(int64(len(data)))))

	f, err := OpenReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	return f
}

func binTableHeader(rowLen, nrows, tfields int) *Header {
	h := NewHeader()
	h.Set("XTENSION", "BINTABLE", "binary table extension")
	h.Set("BITPIX", int64(8), "")
	h.Set("NAXIS", int64(2), "")
	h.Set("NAXIS1", int64(rowLen), "")
	h.Set("NAXIS2", int64(nrows), "")
	h.Set("PCOUNT", int64(0), "")
	h.Set("GCOUNT", int64(1), "")
	h.Set("TFIELDS", int64(tfields), "")
	return h
}

func TestBinTable(t *testing.T) {
	h := binTableHeader(18, 2, 4)
	h.Set("TTYPE1", "COUNT", "")
	h.Set("TFORM1", "J", "")
	h.Set("TDISP1", "I6", "")
	h.Set("TTYPE2", "NAME", "")
	h.Set("TFORM2", "4A", "")
	h.Set("TTYPE3", "FLUX", "")
	h.Set("TFORM3", "E", "")
	h.Set("TTYPE4", "TRIPLE", "")
	h.Set("TFORM4", "3I", "")

	var data bytes.Buffer
	writeRow := func(count int32, name string, flux float32, triple [3]int16) {
		encbin.Write(&data, encbin.BigEndian, count)
		nb := make([]byte, 4)
		copy(nb, name)
		for i := len(name); i < 4; i++ {
			nb[i] = ' '
		}
		data.Write(nb)
		encbin.Write(&data, encbin.BigEndian, math.Float32bits(flux))
		encbin.Write(&data, encbin.BigEndian, triple)
	}
	writeRow(1234, "ab", 1.5, [3]int16{1, 2, 3})
	writeRow(-5, "cdef", -2.0, [3]int16{4, 5, 6})

	f := openTableFile(t, h, data.Bytes())
	hdu, err := f.HDU(1)
	require.NoError(t, err)
	tbl, ok := hdu.(*BinTableHDU)
	require.True(t, ok)
	require.Equal(t, ClassBinTable, tbl.Class())
	require.NoError(t, tbl.Verify())

	require.Equal(t, 2, tbl.NumRows())
	require.Equal(t, 4, tbl.NumCols())
	require.Equal(t, 2, tbl.ColIndex("flux"))
	require.Equal(t, -1, tbl.ColIndex("missing"))

	v, err := tbl.Value(0, 0)
	require.NoError(t, err)
	require.Equal(t, int32(1234), v)

	v, err = tbl.Value(1, 0)
	require.NoError(t, err)
	require.Equal(t, "ab", v)

	v, err = tbl.Value(2, 1)
	require.NoError(t, err)
	require.Equal(t, float32(-2.0), v)

	v, err = tbl.Value(3, 1)
	require.NoError(t, err)
	require.Equal(t, []int16{4, 5, 6}, v)

	counts, err := tbl.Int64s(0)
	require.NoError(t, err)
	require.Equal(t, []int64{1234, -5}, counts)

	fluxes, err := tbl.Float64s(2)
	require.NoError(t, err)
	require.Equal(t, []float64{1.5, -2.0}, fluxes)

	_, err = tbl.Float64s(3) // repeat 3 is not a scalar column
	require.Error(t, err)

	s, err := tbl.FormatValue(0, 0)
	require.NoError(t, err)
	require.Equal(t, "  1234", s)

	names, err := tbl.Strings(1)
	require.NoError(t, err)
	require.Equal(t, []string{"ab", "cdef"}, names)

	_, err = tbl.Value(0, 2)
	require.Error(t, err)
	_, err = tbl.Value(4, 0)
	require.Error(t, err)
}

func TestBinTableComplexAndLogical(t *testing.T) {
	h := binTableHeader(25, 1, 3)
	h.Set("TFORM1", "L", "")
	h.Set("TFORM2", "M", "")
	h.Set("TFORM3", "K", "")

	var data bytes.Buffer
	data.WriteByte('T')
	encbin.Write(&data, encbin.BigEndian, math.Float64bits(3.0))
	encbin.Write(&data, encbin.BigEndian, math.Float64bits(-4.0))
	encbin.Write(&data, encbin.BigEndian, int64(7))
	require.Equal(t, 25, data.Len())

	f := openTableFile(t, h, data.Bytes())
	hdu, err := f.HDU(1)
	require.NoError(t, err)
	tbl := hdu.(*BinTableHDU)

	v, err := tbl.Value(0, 0)
	require.NoError(t, err)
	require.Equal(t, true, v)

	v, err = tbl.Value(1, 0)
	require.NoError(t, err)
	require.Equal(t, complex(3.0, -4.0), v)

	v, err = tbl.Value(2, 0)
	require.NoError(t, err)
	require.Equal(t, int64(7), v)
}

func TestBinTableUnsupportedColumns(t *testing.T) {
	h := binTableHeader(12, 1, 2)
	h.Set("TFORM1", "1PJ(5)", "")
	h.Set("TFORM2", "J", "")

	data := make([]byte, 12)
	encbin.BigEndian.PutUint32(data[8:], 42) // descriptor pair, then the J column

	f := openTableFile(t, h, data)
	hdu, err := f.HDU(1)
	require.NoError(t, err)
	tbl := hdu.(*BinTableHDU)

	_, err = tbl.Value(0, 0)
	require.ErrorIs(t, err, ErrUnsupported)

	v, err := tbl.Value(1, 0)
	require.NoError(t, err)
	require.Equal(t, int32(42), v)
}

func TestBinTableBadGeometry(t *testing.T) {
	// TFORM fields wider than NAXIS1: the dispatch build fails, so the
	// HDU falls back to raw.
	h := binTableHeader(2, 1, 1)
	h.Set("TFORM1", "J", "")

	f := openTableFile(t, h, make([]byte, 2))
	hdu, err := f.HDU(1)
	require.NoError(t, err)
	require.Equal(t, ClassRaw, hdu.Class())
}

func TestASCIITable(t *testing.T) {
	h := NewHeader()
	h.Set("XTENSION", "TABLE", "ASCII table extension")
	h.Set("BITPIX", int64(8), "")
	h.Set("NAXIS", int64(2), "")
	h.Set("NAXIS1", int64(16), "")
	h.Set("NAXIS2", int64(2), "")
	h.Set("PCOUNT", int64(0), "")
	h.Set("GCOUNT", int64(1), "")
	h.Set("TFIELDS", int64(2), "")
	h.Set("TTYPE1", "TARGET", "")
	h.Set("TBCOL1", int64(1), "")
	h.Set("TFORM1", "A6", "")
	h.Set("TTYPE2", "MAG", "")
	h.Set("TBCOL2", int64(7), "")
	h.Set("TFORM2", "F10.3", "")
	h.Set("TDISP2", "F8.2", "")

	rows := "NGC104  1234.500" + "M31      -12.250"
	f := openTableFile(t, h, []byte(rows))
	hdu, err := f.HDU(1)
	require.NoError(t, err)
	tbl, ok := hdu.(*TableHDU)
	require.True(t, ok)
	require.Equal(t, ClassTable, tbl.Class())
	require.NoError(t, tbl.Verify())

	v, err := tbl.Value(0, 0)
	require.NoError(t, err)
	require.Equal(t, "NGC104", v)

	v, err = tbl.Value(1, 0)
	require.NoError(t, err)
	require.Equal(t, 1234.5, v)

	v, err = tbl.Value(0, 1)
	require.NoError(t, err)
	require.Equal(t, "M31", v)

	mags, err := tbl.Float64s(1)
	require.NoError(t, err)
	require.Equal(t, []float64{1234.5, -12.25}, mags)

	s, err := tbl.FormatValue(1, 1)
	require.NoError(t, err)
	require.Equal(t, "  -12.25", s)
}

func TestASCIITableDExponent(t *testing.T) {
	h := NewHeader()
	h.Set("XTENSION", "TABLE", "")
	h.Set("BITPIX", int64(8), "")
	h.Set("NAXIS", int64(2), "")
	h.Set("NAXIS1", int64(12), "")
	h.Set("NAXIS2", int64(1), "")
	h.Set("PCOUNT", int64(0), "")
	h.Set("GCOUNT", int64(1), "")
	h.Set("TFIELDS", int64(1), "")
	h.Set("TBCOL1", int64(1), "")
	h.Set("TFORM1", "D12.4", "")

	f := openTableFile(t, h, []byte("  1.5000D+03"))
	hdu, err := f.HDU(1)
	require.NoError(t, err)

	v, err := hdu.(*TableHDU).Value(0, 0)
	require.NoError(t, err)
	require.Equal(t, 1500.0, v)
}

func TestFormatDisplay(t *testing.T) {
	tests := []struct {
		disp string
		v    interface{}
		want string
	}{
		{"I6", int64(42), "    42"},
		{"I4", int16(-7), "  -7"},
		{"F8.2", -12.25, "  -12.25"},
		{"E12.4", float32(1.5), "  1.5000E+00"},
		{"D12.4", 1.5, "  1.5000D+00"},
		{"G10.3", 0.25, "      0.25"},
		{"A8", "NGC", "     NGC"},
		{"Z4", int64(255), "  FF"},
		{"O4", int64(8), "  10"},
		{"B8", int64(5), "     101"},
		{"", true, "T"},
		{"", int64(9), "9"},
		{"", "plain", "plain"},
		{"bogus", 1.5, "1.5"},
	}
	for _, tt := range tests {
		got, err := formatDisplay(tt.disp, tt.v)
		require.NoError(t, err, "disp %q", tt.disp)
		require.Equal(t, tt.want, got, "disp %q value %v", tt.disp, tt.v)
	}

	_, err := formatDisplay("I6", "not a number")
	require.Error(t, err)
}

func TestParseBinForm(t *testing.T) {
	repeat, code, err := parseBinForm("12E")
	require.NoError(t, err)
	require.Equal(t, 12, repeat)
	require.Equal(t, byte('E'), code)

	repeat, code, err = parseBinForm("D")
	require.NoError(t, err)
	require.Equal(t, 1, repeat)
	require.Equal(t, byte('D'), code)

	_, _, err = parseBinForm("")
	require.Error(t, err)
	_, _, err = parseBinForm("3R")
	require.Error(t, err)
	_, _, err = parseBinForm("12")
	require.Error(t, err)
}
