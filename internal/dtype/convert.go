package dtype

import (
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
)

// Decode converts a raw big-endian data region into the native slice
// type for bitpix: []uint8, []int16, []int32, []int64, []float32 or
// []float64.
func Decode(bitpix int, raw []byte, n int) (interface{}, error) {
	size, err := ElemSize(bitpix)
	if err != nil {
		return nil, err
	}
	if len(raw) < n*size {
		return nil, fmt.Errorf("data region too short: need %d bytes, have %d", n*size, len(raw))
	}

	switch bitpix {
	case Uint8:
		out := make([]uint8, n)
		copy(out, raw[:n])
		return out, nil
	case Int16:
		out := make([]int16, n)
		for i := range out {
			out[i] = int16(binary.BigEndian.Uint16(raw[2*i:]))
		}
		return out, nil
	case Int32:
		out := make([]int32, n)
		for i := range out {
			out[i] = int32(binary.BigEndian.Uint32(raw[4*i:]))
		}
		return out, nil
	case Int64:
		out := make([]int64, n)
		for i := range out {
			out[i] = int64(binary.BigEndian.Uint64(raw[8*i:]))
		}
		return out, nil
	case Float32:
		out := make([]float32, n)
		for i := range out {
			out[i] = math.Float32frombits(binary.BigEndian.Uint32(raw[4*i:]))
		}
		return out, nil
	case Float64:
		out := make([]float64, n)
		for i := range out {
			out[i] = math.Float64frombits(binary.BigEndian.Uint64(raw[8*i:]))
		}
		return out, nil
	}
	return nil, fmt.Errorf("invalid BITPIX %d", bitpix)
}

// Convert decodes a raw big-endian data region into dest, which must be
// a pointer to a slice of any numeric type. Values are converted across
// numeric kinds with Go conversion semantics (floats truncate toward
// zero when the destination is integral).
func Convert(bitpix int, raw []byte, n int, dest interface{}) error {
	destVal := reflect.ValueOf(dest)
	if destVal.Kind() != reflect.Ptr || destVal.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("dest must be a pointer to a slice, got %T", dest)
	}

	native, err := Decode(bitpix, raw, n)
	if err != nil {
		return err
	}
	src := reflect.ValueOf(native)

	slice := destVal.Elem()
	if slice.Len() != n {
		slice.Set(reflect.MakeSlice(slice.Type(), n, n))
	}

	// Fast path: destination element type matches the native type.
	if slice.Type() == src.Type() {
		reflect.Copy(slice, src)
		return nil
	}

	elemKind := slice.Type().Elem().Kind()
	for i := 0; i < n; i++ {
		v := src.Index(i)
		switch elemKind {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			slice.Index(i).SetInt(asInt64(v))
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			slice.Index(i).SetUint(uint64(asInt64(v)))
		case reflect.Float32, reflect.Float64:
			slice.Index(i).SetFloat(asFloat64(v))
		default:
			return fmt.Errorf("unsupported destination element kind %s", elemKind)
		}
	}
	return nil
}

func asInt64(v reflect.Value) int64 {
	switch v.Kind() {
	case reflect.Uint8:
		return int64(v.Uint())
	case reflect.Float32, reflect.Float64:
		return int64(v.Float())
	default:
		return v.Int()
	}
}

func asFloat64(v reflect.Value) float64 {
	switch v.Kind() {
	case reflect.Uint8:
		return float64(v.Uint())
	case reflect.Float32, reflect.Float64:
		return v.Float()
	default:
		return float64(v.Int())
	}
}

// ConvertToSlice decodes a raw data region into a newly allocated slice.
func ConvertToSlice[T any](bitpix int, raw []byte, n int) ([]T, error) {
	result := make([]T, n)
	if err := Convert(bitpix, raw, n, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Encode converts a typed slice into big-endian bytes. The slice type
// must match bitpix exactly; the write path derives one from the other.
func Encode(bitpix int, src interface{}) ([]byte, error) {
	want, _, err := FromSlice(src)
	if err != nil {
		return nil, err
	}
	if want != bitpix {
		return nil, fmt.Errorf("slice type %T does not match BITPIX %d", src, bitpix)
	}

	switch d := src.(type) {
	case []uint8:
		out := make([]byte, len(d))
		copy(out, d)
		return out, nil
	case []int16:
		out := make([]byte, 2*len(d))
		for i, v := range d {
			binary.BigEndian.PutUint16(out[2*i:], uint16(v))
		}
		return out, nil
	case []int32:
		out := make([]byte, 4*len(d))
		for i, v := range d {
			binary.BigEndian.PutUint32(out[4*i:], uint32(v))
		}
		return out, nil
	case []int64:
		out := make([]byte, 8*len(d))
		for i, v := range d {
			binary.BigEndian.PutUint64(out[8*i:], uint64(v))
		}
		return out, nil
	case []float32:
		out := make([]byte, 4*len(d))
		for i, v := range d {
			binary.BigEndian.PutUint32(out[4*i:], math.Float32bits(v))
		}
		return out, nil
	case []float64:
		out := make([]byte, 8*len(d))
		for i, v := range d {
			binary.BigEndian.PutUint64(out[8*i:], math.Float64bits(v))
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported slice type %T", src)
}

// Scale applies the BSCALE/BZERO linear transform in place.
func Scale(dst []float64, bscale, bzero float64) {
	if bscale == 1 && bzero == 0 {
		return
	}
	for i := range dst {
		dst[i] = dst[i]*bscale + bzero
	}
}
