package fits

import (
	"fmt"

	"github.com/starbeam-io/go-fits/internal/card"
	"github.com/starbeam-io/go-fits/internal/dtype"
)

// ImageHDU is an n-dimensional array HDU: either the primary HDU or an
// IMAGE extension.
type ImageHDU struct {
	hduBase
}

func (h *ImageHDU) Class() Class { return ClassImage }

func (h *ImageHDU) Verify() error {
	if h.primary {
		simple, ok := h.header.Bool("SIMPLE")
		if !ok {
			return fmt.Errorf("missing mandatory SIMPLE card: %w", ErrCorruptHeader)
		}
		if !simple {
			return fmt.Errorf("SIMPLE = F: %w", ErrCorruptHeader)
		}
	} else {
		if err := h.requireCards("XTENSION", "PCOUNT", "GCOUNT"); err != nil {
			return err
		}
		if v, _ := h.header.Int("PCOUNT"); v != 0 {
			return fmt.Errorf("image extension with PCOUNT %d: %w", v, ErrCorruptHeader)
		}
	}
	return h.verifyShape()
}

// Bitpix returns the pixel type code.
func (h *ImageHDU) Bitpix() int {
	v, _ := h.header.Int("BITPIX")
	return int(v)
}

// Shape returns the axis lengths NAXIS1..NAXISn. An empty image has no
// axes.
func (h *ImageHDU) Shape() ([]int, error) {
	return h.header.Naxis()
}

// NumPixels returns the total element count, zero for a dataless HDU.
func (h *ImageHDU) NumPixels() (int64, error) {
	axes, err := h.header.Naxis()
	if err != nil {
		return 0, err
	}
	if len(axes) == 0 {
		return 0, nil
	}
	n := int64(1)
	for _, ax := range axes {
		n *= int64(ax)
	}
	return n, nil
}

// Read decodes the pixel data into dest, a pointer to a slice of any
// numeric type. Values are converted from the stored BITPIX type with
// Go conversion semantics. BSCALE/BZERO are not applied; see
// ReadFloat64s.
func (h *ImageHDU) Read(dest interface{}) error {
	raw, n, err := h.rawPixels()
	if err != nil {
		return err
	}
	return dtype.Convert(h.Bitpix(), raw, int(n), dest)
}

// Data returns the pixel data as the native slice type for the HDU's
// BITPIX: []uint8, []int16, []int32, []int64, []float32 or []float64.
func (h *ImageHDU) Data() (interface{}, error) {
	raw, n, err := h.rawPixels()
	if err != nil {
		return nil, err
	}
	return dtype.Decode(h.Bitpix(), raw, int(n))
}

// ReadFloat64s decodes the pixel data to float64 and applies the
// BSCALE/BZERO linear transform, yielding physical values.
func (h *ImageHDU) ReadFloat64s() ([]float64, error) {
	raw, n, err := h.rawPixels()
	if err != nil {
		return nil, err
	}
	vals, err := dtype.ConvertToSlice[float64](h.Bitpix(), raw, int(n))
	if err != nil {
		return nil, err
	}
	bscale, ok := h.header.Float("BSCALE")
	if !ok {
		bscale = 1
	}
	bzero, _ := h.header.Float("BZERO")
	dtype.Scale(vals, bscale, bzero)
	return vals, nil
}

// ReadInt16s decodes the pixel data as int16 values.
func (h *ImageHDU) ReadInt16s() ([]int16, error) {
	raw, n, err := h.rawPixels()
	if err != nil {
		return nil, err
	}
	return dtype.ConvertToSlice[int16](h.Bitpix(), raw, int(n))
}

// ReadInt32s decodes the pixel data as int32 values.
func (h *ImageHDU) ReadInt32s() ([]int32, error) {
	raw, n, err := h.rawPixels()
	if err != nil {
		return nil, err
	}
	return dtype.ConvertToSlice[int32](h.Bitpix(), raw, int(n))
}

// ReadInt64s decodes the pixel data as int64 values.
func (h *ImageHDU) ReadInt64s() ([]int64, error) {
	raw, n, err := h.rawPixels()
	if err != nil {
		return nil, err
	}
	return dtype.ConvertToSlice[int64](h.Bitpix(), raw, int(n))
}

// ReadFloat32s decodes the pixel data as float32 values, without
// scaling.
func (h *ImageHDU) ReadFloat32s() ([]float32, error) {
	raw, n, err := h.rawPixels()
	if err != nil {
		return nil, err
	}
	return dtype.ConvertToSlice[float32](h.Bitpix(), raw, int(n))
}

func (h *ImageHDU) rawPixels() ([]byte, int64, error) {
	n, err := h.NumPixels()
	if err != nil {
		return nil, 0, err
	}
	raw, err := h.Raw()
	if err != nil {
		return nil, 0, err
	}
	return raw, n, nil
}

// SetData replaces the pixel data. The slice type must match the
// header's BITPIX and its length the product of the NAXISn axes.
func (h *ImageHDU) SetData(data interface{}) error {
	bitpix, count, err := dtype.FromSlice(data)
	if err != nil {
		return err
	}
	if bitpix != h.Bitpix() {
		return fmt.Errorf("slice type %T does not match BITPIX %d: %w", data, h.Bitpix(), ErrDataMismatch)
	}
	n, err := h.NumPixels()
	if err != nil {
		return err
	}
	if int64(count) != n {
		return fmt.Errorf("%d elements for %d pixels: %w", count, n, ErrDataMismatch)
	}
	raw, err := dtype.Encode(bitpix, data)
	if err != nil {
		return err
	}
	h.setRaw(raw)
	return nil
}

// NewPrimary creates a dataless primary HDU, the minimal first HDU of
// any FITS file.
func NewPrimary() *ImageHDU {
	h := NewHeader()
	h.Set("SIMPLE", true, "conforms to FITS standard")
	h.Set("BITPIX", int64(8), "array data type")
	h.Set("NAXIS", int64(0), "number of array dimensions")
	h.Set("EXTEND", true, "")
	return &ImageHDU{hduBase{header: h, primary: true}}
}

// NewImage creates an image HDU with the given pixel data and shape.
// The data slice type determines BITPIX; shape is NAXIS1..NAXISn and
// its product must equal the slice length. When primary is true the
// HDU carries SIMPLE instead of XTENSION and can open a file.
func NewImage(data interface{}, shape []int, primary bool) (*ImageHDU, error) {
	bitpix, count, err := dtype.FromSlice(data)
	if err != nil {
		return nil, err
	}
	pixels := 1
	for _, ax := range shape {
		if ax <= 0 {
			return nil, fmt.Errorf("invalid axis length %d", ax)
		}
		pixels *= ax
	}
	if count != pixels {
		return nil, fmt.Errorf("%d elements for shape %v: %w", count, shape, ErrDataMismatch)
	}

	h := NewHeader()
	if primary {
		h.Set("SIMPLE", true, "conforms to FITS standard")
	} else {
		h.Set("XTENSION", "IMAGE", "image extension")
	}
	h.Set("BITPIX", int64(bitpix), "array data type")
	h.Set("NAXIS", int64(len(shape)), "number of array dimensions")
	for i, ax := range shape {
		h.Set(card.Nth("NAXIS", i+1), int64(ax), "")
	}
	if !primary {
		h.Set("PCOUNT", int64(0), "number of group parameters")
		h.Set("GCOUNT", int64(1), "number of groups")
	}

	hdu := &ImageHDU{hduBase{header: h, primary: primary}}
	raw, err := dtype.Encode(bitpix, data)
	if err != nil {
		return nil, err
	}
	hdu.setRaw(raw)
	return hdu, nil
}
