package fits

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/starbeam-io/go-fits/internal/binary"
)

// writeImageFile builds a two-HDU file on disk: a dataless primary and
// an int16 image extension named SCI.
func writeImageFile(t *testing.T, opts ...Option) (string, []int16) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.fits")

	pixels := []int16{1, -2, 300, -400, 5, 6}
	img, err := NewImage(pixels, []int{3, 2}, false)
	require.NoError(t, err)
	img.Header().Set("EXTNAME", "SCI", "")

	f, err := Create(path, opts...)
	require.NoError(t, err)
	require.NoError(t, f.AddHDU(NewPrimary()))
	require.NoError(t, f.AddHDU(img))
	require.NoError(t, f.Close())
	return path, pixels
}

func TestCreateOpenRoundTrip(t *testing.T) {
	path, pixels := writeImageFile(t)

	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, 2, f.NumHDUs())
	require.Equal(t, int64(3*binary.BlockSize), f.Size())

	primary, err := f.Primary()
	require.NoError(t, err)
	require.Equal(t, ClassImage, primary.Class())
	require.Equal(t, "PRIMARY", primary.Name())
	require.Zero(t, primary.Size())
	require.NoError(t, primary.Verify())

	hdu, err := f.ByName("sci") // names compare case-insensitively
	require.NoError(t, err)
	img, ok := hdu.(*ImageHDU)
	require.True(t, ok)
	require.NoError(t, img.Verify())

	shape, err := img.Shape()
	require.NoError(t, err)
	require.Equal(t, []int{3, 2}, shape)

	got, err := img.ReadInt16s()
	require.NoError(t, err)
	require.Equal(t, pixels, got)
}

func TestOpenReader(t *testing.T) {
	path, pixels := writeImageFile(t)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	f, err := OpenReader(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)
	require.Equal(t, 2, f.NumHDUs())

	hdu, err := f.HDU(1)
	require.NoError(t, err)
	got, err := hdu.(*ImageHDU).ReadInt16s()
	require.NoError(t, err)
	require.Equal(t, pixels, got)
}

func TestOpenNotFITS(t *testing.T) {
	h := NewHeader()
	h.Set("FOO", int64(1), "")
	raw, err := h.Bytes()
	require.NoError(t, err)

	_, err = OpenReader(bytes.NewReader(raw), int64(len(raw)))
	require.ErrorIs(t, err, ErrNotFITS)

	_, err = OpenReader(bytes.NewReader(nil), 0)
	require.ErrorIs(t, err, ErrNotFITS)
}

func TestCorruptedTrailingHDU(t *testing.T) {
	path, _ := writeImageFile(t)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	// A trailing header block with no END card.
	garbage := bytes.Repeat([]byte{' '}, binary.BlockSize)
	copy(garbage, "XTENSION= 'IMAGE   '")
	raw = append(raw, garbage...)

	f, err := OpenReader(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)
	require.Equal(t, 3, f.NumHDUs())

	hdu, err := f.HDU(2)
	require.NoError(t, err)
	require.Equal(t, ClassCorrupted, hdu.Class())
	require.Error(t, hdu.Verify())

	// Strict mode refuses the file outright.
	_, err = OpenReader(bytes.NewReader(raw), int64(len(raw)), WithStrict())
	require.ErrorIs(t, err, ErrCorruptHeader)
}

func TestTruncatedDataRegion(t *testing.T) {
	path, _ := writeImageFile(t)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw = raw[:len(raw)-binary.BlockSize] // drop the image data block

	f, err := OpenReader(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)
	hdu, err := f.HDU(1)
	require.NoError(t, err)
	require.Zero(t, hdu.Size()) // clamped to what is present

	_, err = OpenReader(bytes.NewReader(raw), int64(len(raw)), WithStrict())
	require.ErrorIs(t, err, ErrCorruptHeader)
}

func TestUpdateHeaderInPlace(t *testing.T) {
	path, pixels := writeImageFile(t)
	before, err := os.Stat(path)
	require.NoError(t, err)

	f, err := OpenUpdate(path)
	require.NoError(t, err)
	p, err := f.Primary()
	require.NoError(t, err)
	p.Header().Set("OBSERVER", "E. Hubble", "")
	require.NoError(t, f.Close())

	after, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, before.Size(), after.Size(), "header edit should rewrite in place")

	f, err = Open(path)
	require.NoError(t, err)
	defer f.Close()
	p, err = f.Primary()
	require.NoError(t, err)
	obs, ok := p.Header().Str("OBSERVER")
	require.True(t, ok)
	require.Equal(t, "E. Hubble", obs)

	hdu, err := f.ByName("SCI")
	require.NoError(t, err)
	got, err := hdu.(*ImageHDU).ReadInt16s()
	require.NoError(t, err)
	require.Equal(t, pixels, got)
}

func TestUpdateRewritesWhenHeaderGrows(t *testing.T) {
	path, pixels := writeImageFile(t)
	before, err := os.Stat(path)
	require.NoError(t, err)

	f, err := OpenUpdate(path)
	require.NoError(t, err)
	p, err := f.Primary()
	require.NoError(t, err)
	for i := 0; i < 40; i++ { // outgrow the single header block
		p.Header().AddHistory("reprocessed with updated dark frames")
	}
	require.NoError(t, f.Close())

	after, err := os.Stat(path)
	require.NoError(t, err)
	require.Greater(t, after.Size(), before.Size())
	require.Zero(t, after.Size()%int64(binary.BlockSize))

	f, err = Open(path)
	require.NoError(t, err)
	defer f.Close()
	require.Equal(t, 2, f.NumHDUs())
	hdu, err := f.ByName("SCI")
	require.NoError(t, err)
	got, err := hdu.(*ImageHDU).ReadInt16s()
	require.NoError(t, err)
	require.Equal(t, pixels, got)
}

func TestUpdateReplacesData(t *testing.T) {
	path, _ := writeImageFile(t)

	f, err := OpenUpdate(path)
	require.NoError(t, err)
	hdu, err := f.ByName("SCI")
	require.NoError(t, err)
	fresh := []int16{9, 8, 7, 6, 5, 4}
	require.NoError(t, hdu.(*ImageHDU).SetData(fresh))
	require.NoError(t, f.Close())

	f, err = Open(path)
	require.NoError(t, err)
	defer f.Close()
	hdu, err = f.ByName("SCI")
	require.NoError(t, err)
	got, err := hdu.(*ImageHDU).ReadInt16s()
	require.NoError(t, err)
	require.Equal(t, fresh, got)
}

func TestAddHDUOrdering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "order.fits")
	f, err := Create(path)
	require.NoError(t, err)
	defer f.Close()

	ext, err := NewImage([]int32{1}, []int{1}, false)
	require.NoError(t, err)
	require.ErrorIs(t, f.AddHDU(ext), ErrDataMismatch)

	require.NoError(t, f.AddHDU(NewPrimary()))
	require.ErrorIs(t, f.AddHDU(NewPrimary()), ErrDataMismatch)
	require.NoError(t, f.AddHDU(ext))
}

func TestAddHDUReadOnly(t *testing.T) {
	path, _ := writeImageFile(t)
	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()

	require.ErrorIs(t, f.AddHDU(NewPrimary()), ErrReadOnly)
	require.ErrorIs(t, f.Flush(), ErrReadOnly)
}

func TestByNameVer(t *testing.T) {
	fpath := filepath.Join(t.TempDir(), "ver.fits")
	f, err := Create(fpath)
	require.NoError(t, err)
	require.NoError(t, f.AddHDU(NewPrimary()))
	for ver := 1; ver <= 2; ver++ {
		img, err := NewImage([]int32{int32(ver)}, []int{1}, false)
		require.NoError(t, err)
		img.Header().Set("EXTNAME", "SCI", "")
		img.Header().Set("EXTVER", int64(ver), "")
		require.NoError(t, f.AddHDU(img))
	}
	require.NoError(t, f.Close())

	f, err = Open(fpath)
	require.NoError(t, err)
	defer f.Close()

	hdu, err := f.ByNameVer("SCI", 2)
	require.NoError(t, err)
	require.Equal(t, 2, hdu.Ver())
	vals, err := hdu.(*ImageHDU).ReadInt32s()
	require.NoError(t, err)
	require.Equal(t, []int32{2}, vals)

	_, err = f.ByNameVer("SCI", 3)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = f.ByName("WHT")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestClosedFile(t *testing.T) {
	path, _ := writeImageFile(t)
	f, err := Open(path)
	require.NoError(t, err)
	hdu, err := f.HDU(1)
	require.NoError(t, err)

	require.NoError(t, f.Close())
	require.ErrorIs(t, f.Close(), ErrClosed)
	_, err = hdu.Raw()
	require.ErrorIs(t, err, ErrClosed)
}

func TestEach(t *testing.T) {
	path, _ := writeImageFile(t)
	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()

	var classes []Class
	err = f.Each(func(i int, hdu HDU) error {
		classes = append(classes, hdu.Class())
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []Class{ClassImage, ClassImage}, classes)
}
