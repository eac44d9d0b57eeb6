package telemetry

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/shaunagostinho/rusefi-datalog/internal/schema"
)

func TestDecodeScaledS16(t *testing.T) {
	// int16 -100 at offset 10, scale 0.1, bias 5.0 -> -5.0
	blob := make([]byte, 16)
	s16 := int16(-100)
	binary.LittleEndian.PutUint16(blob[10:], uint16(s16))

	ch := schema.Channel{Name: "clt", Offset: 10, Type: schema.S16, Mul: 0.1, Add: 5.0}
	if got := Decode(blob, ch); got != -5.0 {
		t.Fatalf("Decode() = %v, want -5.0", got)
	}
}

func TestDecodeAllTypes(t *testing.T) {
	blob := make([]byte, 32)
	blob[0] = 200                                             // U8
	s8 := int8(-10)
	blob[1] = byte(s8) // S8
	binary.LittleEndian.PutUint16(blob[2:], 40000)            // U16
	s16 := int16(-30000)
	binary.LittleEndian.PutUint16(blob[4:], uint16(s16)) // S16
	binary.LittleEndian.PutUint32(blob[6:], 3000000000)  // U32
	s32 := int32(-123456)
	binary.LittleEndian.PutUint32(blob[10:], uint32(s32)) // S32
	binary.LittleEndian.PutUint32(blob[14:], math.Float32bits(2.5))  // F32

	cases := []struct {
		name string
		ch   schema.Channel
		want float32
	}{
		{"u8", schema.Channel{Offset: 0, Type: schema.U8, Mul: 1}, 200},
		{"s8", schema.Channel{Offset: 1, Type: schema.S8, Mul: 1}, -10},
		{"u16", schema.Channel{Offset: 2, Type: schema.U16, Mul: 1}, 40000},
		{"s16", schema.Channel{Offset: 4, Type: schema.S16, Mul: 1}, -30000},
		{"u32", schema.Channel{Offset: 6, Type: schema.U32, Mul: 1}, 3000000000},
		{"s32", schema.Channel{Offset: 10, Type: schema.S32, Mul: 1}, -123456},
		{"f32", schema.Channel{Offset: 14, Type: schema.F32, Mul: 2}, 5.0},
	}
	for _, tc := range cases {
		if got := Decode(blob, tc.ch); got != tc.want {
			t.Errorf("%s: Decode() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestDecodeOutOfBounds(t *testing.T) {
	blob := make([]byte, 4)
	ch := schema.Channel{Offset: 2, Type: schema.U32, Mul: 1, Add: 7}
	// Bounds-checked read: no slice, zero raw value, bias still applies.
	if got := Decode(blob, ch); got != 7 {
		t.Fatalf("Decode() = %v, want 7", got)
	}
}
