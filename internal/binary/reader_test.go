package binary

import (
	"bytes"
	"math"
	"testing"
)

func TestPadLength(t *testing.T) {
	tests := []struct {
		n    int64
		want int64
	}{
		{0, 0},
		{1, 2879},
		{2879, 1},
		{2880, 0},
		{2881, 2879},
		{5760, 0},
	}
	for _, tt := range tests {
		if got := PadLength(tt.n); got != tt.want {
			t.Errorf("PadLength(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

func TestReaderBigEndian(t *testing.T) {
	data := []byte{
		0x12,                   // uint8
		0x01, 0x02,             // uint16
		0x01, 0x02, 0x03, 0x04, // uint32
		0xFF, 0xFE, // int16 -2
		0x40, 0x49, 0x0F, 0xDB, // float32 ~pi
	}
	r := NewReader(bytes.NewReader(data))

	if v, err := r.ReadUint8(); err != nil || v != 0x12 {
		t.Errorf("ReadUint8 = %v, %v", v, err)
	}
	if v, err := r.ReadUint16(); err != nil || v != 0x0102 {
		t.Errorf("ReadUint16 = %v, %v", v, err)
	}
	if v, err := r.ReadUint32(); err != nil || v != 0x01020304 {
		t.Errorf("ReadUint32 = %v, %v", v, err)
	}
	if v, err := r.ReadInt16(); err != nil || v != -2 {
		t.Errorf("ReadInt16 = %v, %v", v, err)
	}
	v, err := r.ReadFloat32()
	if err != nil || math.Abs(float64(v)-math.Pi) > 1e-6 {
		t.Errorf("ReadFloat32 = %v, %v", v, err)
	}
}

func TestReaderAt(t *testing.T) {
	data := []byte{0, 1, 2, 3, 4, 5, 6, 7}
	r := NewReader(bytes.NewReader(data))
	r.Skip(4)

	r2 := r.At(1)
	if v, err := r2.ReadUint8(); err != nil || v != 1 {
		t.Errorf("At(1).ReadUint8 = %v, %v", v, err)
	}
	// Original position unaffected.
	if r.Pos() != 4 {
		t.Errorf("original reader position = %d, want 4", r.Pos())
	}
}

func TestReaderAlign(t *testing.T) {
	data := make([]byte, 2*BlockSize)
	r := NewReader(bytes.NewReader(data))

	r.Skip(1)
	r.Align()
	if r.Pos() != BlockSize {
		t.Errorf("Align after 1 byte: pos = %d, want %d", r.Pos(), BlockSize)
	}
	r.Align()
	if r.Pos() != BlockSize {
		t.Errorf("Align on boundary moved position to %d", r.Pos())
	}
}

func TestReaderPeek(t *testing.T) {
	data := []byte{9, 8, 7}
	r := NewReader(bytes.NewReader(data))

	buf, err := r.Peek(2)
	if err != nil || !bytes.Equal(buf, []byte{9, 8}) {
		t.Errorf("Peek = %v, %v", buf, err)
	}
	if r.Pos() != 0 {
		t.Errorf("Peek advanced position to %d", r.Pos())
	}
}
