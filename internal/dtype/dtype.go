// Package dtype maps FITS BITPIX codes to Go types and converts
// between big-endian data regions and typed slices.
package dtype

import (
	"fmt"
	"reflect"
)

// The six BITPIX codes the FITS standard defines. Positive values are
// integers of that bit width, negative values IEEE floats.
const (
	Uint8   = 8
	Int16   = 16
	Int32   = 32
	Int64   = 64
	Float32 = -32
	Float64 = -64
)

// Valid reports whether bitpix is one of the six legal codes.
func Valid(bitpix int) bool {
	switch bitpix {
	case Uint8, Int16, Int32, Int64, Float32, Float64:
		return true
	}
	return false
}

// ElemSize returns the element size in bytes for a BITPIX code.
func ElemSize(bitpix int) (int, error) {
	if !Valid(bitpix) {
		return 0, fmt.Errorf("invalid BITPIX %d", bitpix)
	}
	n := bitpix
	if n < 0 {
		n = -n
	}
	return n / 8, nil
}

// GoType returns the native Go element type for a BITPIX code.
func GoType(bitpix int) (reflect.Type, error) {
	switch bitpix {
	case Uint8:
		return reflect.TypeOf(uint8(0)), nil
	case Int16:
		return reflect.TypeOf(int16(0)), nil
	case Int32:
		return reflect.TypeOf(int32(0)), nil
	case Int64:
		return reflect.TypeOf(int64(0)), nil
	case Float32:
		return reflect.TypeOf(float32(0)), nil
	case Float64:
		return reflect.TypeOf(float64(0)), nil
	default:
		return nil, fmt.Errorf("invalid BITPIX %d", bitpix)
	}
}

// FromSlice returns the BITPIX code matching a typed data slice, and its
// length. Used on the write path to derive header keywords from data.
func FromSlice(data interface{}) (bitpix int, n int, err error) {
	switch d := data.(type) {
	case []uint8:
		return Uint8, len(d), nil
	case []int16:
		return Int16, len(d), nil
	case []int32:
		return Int32, len(d), nil
	case []int64:
		return Int64, len(d), nil
	case []float32:
		return Float32, len(d), nil
	case []float64:
		return Float64, len(d), nil
	default:
		return 0, 0, fmt.Errorf("no BITPIX code for %T", data)
	}
}
