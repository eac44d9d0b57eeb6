// Package telemetry turns raw telemetry blobs into typed values and
// formatted log rows using a parsed schema definition.
package telemetry

import (
	"encoding/binary"
	"math"

	"github.com/shaunagostinho/rusefi-datalog/internal/schema"
)

// Decode extracts one channel's value from a telemetry blob: the designated
// little-endian integer or IEEE-754 float at the channel's offset, scaled
// as raw*Mul + Add. Reads are bounds-checked; a field that would extend
// past the blob decodes to the zero value.
func Decode(blob []byte, ch schema.Channel) float32 {
	off := int(ch.Offset)
	if off+ch.Type.Width() > len(blob) {
		return 0
	}

	var raw float32
	switch ch.Type {
	case schema.U8:
		raw = float32(blob[off])
	case schema.S8:
		raw = float32(int8(blob[off]))
	case schema.U16:
		raw = float32(binary.LittleEndian.Uint16(blob[off:]))
	case schema.S16:
		raw = float32(int16(binary.LittleEndian.Uint16(blob[off:])))
	case schema.U32:
		raw = float32(binary.LittleEndian.Uint32(blob[off:]))
	case schema.S32:
		raw = float32(int32(binary.LittleEndian.Uint32(blob[off:])))
	case schema.F32:
		raw = math.Float32frombits(binary.LittleEndian.Uint32(blob[off:]))
	}
	return raw*ch.Mul + ch.Add
}
