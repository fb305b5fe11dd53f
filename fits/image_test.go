package fits

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewImageValidation(t *testing.T) {
	_, err := NewImage([]int16{1, 2, 3}, []int{2, 2}, false)
	require.ErrorIs(t, err, ErrDataMismatch)

	_, err = NewImage([]int16{1, 2}, []int{2, 0}, false)
	require.Error(t, err)

	_, err = NewImage("not a slice", []int{1}, false)
	require.Error(t, err)
}

func TestNewImageHeaders(t *testing.T) {
	img, err := NewImage([]float32{1, 2, 3, 4, 5, 6}, []int{3, 2}, false)
	require.NoError(t, err)

	h := img.Header()
	xt, _ := h.Str("XTENSION")
	require.Equal(t, "IMAGE", xt)
	require.Equal(t, -32, img.Bitpix())
	n1, _ := h.Int("NAXIS1")
	n2, _ := h.Int("NAXIS2")
	require.Equal(t, int64(3), n1)
	require.Equal(t, int64(2), n2)
	require.NoError(t, img.Verify())

	prim, err := NewImage([]float32{1}, []int{1}, true)
	require.NoError(t, err)
	simple, ok := prim.Header().Bool("SIMPLE")
	require.True(t, ok)
	require.True(t, simple)
	require.NoError(t, prim.Verify())
}

func TestImageReadConversions(t *testing.T) {
	img, err := NewImage([]int16{1, -2, 300}, []int{3}, false)
	require.NoError(t, err)

	var floats []float64
	require.NoError(t, img.Read(&floats))
	require.Equal(t, []float64{1, -2, 300}, floats)

	i32, err := img.ReadInt32s()
	require.NoError(t, err)
	require.Equal(t, []int32{1, -2, 300}, i32)

	i64, err := img.ReadInt64s()
	require.NoError(t, err)
	require.Equal(t, []int64{1, -2, 300}, i64)

	f32, err := img.ReadFloat32s()
	require.NoError(t, err)
	require.Equal(t, []float32{1, -2, 300}, f32)

	native, err := img.Data()
	require.NoError(t, err)
	require.Equal(t, []int16{1, -2, 300}, native)

	n, err := img.NumPixels()
	require.NoError(t, err)
	require.Equal(t, int64(3), n)
}

func TestReadFloat64sScaling(t *testing.T) {
	img, err := NewImage([]int16{0, 1, 2}, []int{3}, false)
	require.NoError(t, err)
	img.Header().Set("BSCALE", 0.5, "")
	img.Header().Set("BZERO", 100.0, "")

	vals, err := img.ReadFloat64s()
	require.NoError(t, err)
	require.Equal(t, []float64{100, 100.5, 101}, vals)
}

func TestReadFloat64sWithoutScalingCards(t *testing.T) {
	img, err := NewImage([]float64{1.5, -2.5}, []int{2}, false)
	require.NoError(t, err)

	vals, err := img.ReadFloat64s()
	require.NoError(t, err)
	require.Equal(t, []float64{1.5, -2.5}, vals)
}

func TestSetDataValidation(t *testing.T) {
	img, err := NewImage([]int16{1, 2, 3, 4}, []int{2, 2}, false)
	require.NoError(t, err)

	require.ErrorIs(t, img.SetData([]int32{1, 2, 3, 4}), ErrDataMismatch)
	require.ErrorIs(t, img.SetData([]int16{1, 2}), ErrDataMismatch)
	require.NoError(t, img.SetData([]int16{4, 3, 2, 1}))

	got, err := img.ReadInt16s()
	require.NoError(t, err)
	require.Equal(t, []int16{4, 3, 2, 1}, got)
}

func TestPrimaryDataless(t *testing.T) {
	p := NewPrimary()
	require.Equal(t, ClassImage, p.Class())
	require.Zero(t, p.Size())

	n, err := p.NumPixels()
	require.NoError(t, err)
	require.Zero(t, n)

	raw, err := p.Raw()
	require.NoError(t, err)
	require.Nil(t, raw)
}
