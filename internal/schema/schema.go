// Package schema parses the per-device channel-definition file that
// describes the ECU's telemetry block: which channels exist, where each one
// lives inside the block, and how to scale the raw value. The layout is not
// known at build time; it is discovered per device from this file.
package schema

import "errors"

// TypeCode identifies the binary encoding of one channel inside the
// telemetry block. All multi-byte types are little-endian.
type TypeCode uint8

const (
	U8 TypeCode = iota
	S8
	U16
	S16
	U32
	S32
	F32
)

// Width returns the encoded size of the type in bytes.
func (tc TypeCode) Width() int {
	switch tc {
	case U8, S8:
		return 1
	case U16, S16:
		return 2
	default:
		return 4
	}
}

func (tc TypeCode) String() string {
	switch tc {
	case U8:
		return "U08"
	case S8:
		return "S08"
	case U16:
		return "U16"
	case S16:
		return "S16"
	case U32:
		return "U32"
	case S32:
		return "S32"
	case F32:
		return "F32"
	}
	return "?"
}

// Channel describes one scalar field of the telemetry block.
// Decoded value = raw*Mul + Add.
type Channel struct {
	Name   string
	Unit   string
	Offset uint16
	Type   TypeCode
	Mul    float32
	Add    float32
}

// DatalogEntry subsets and relabels the channel table for output. Channel
// is an index into Definition.Channels, resolved at parse time (first match
// wins when names are duplicated). RenderAsFloat selects 3-decimal float
// rendering; otherwise the value is written as a truncated integer.
type DatalogEntry struct {
	Label         string
	Channel       int
	RenderAsFloat bool
}

// Definition is the parsed schema: the channel table in file order, the
// optional datalog ordering, and the required telemetry block size.
type Definition struct {
	Channels  []Channel
	Datalog   []DatalogEntry
	BlockSize int
}

// Fatal parse failures. Malformed individual lines are skipped, never
// surfaced; only these end the whole parse.
var (
	ErrMissingBlockSize = errors.New("schema: ochBlockSize not found")
	ErrBlockSizeTooBig  = errors.New("schema: ochBlockSize exceeds buffer capacity")
	ErrNoChannels       = errors.New("schema: no scalar channels parsed")
)

// Hard caps of the INI format. Overlong names, units
// and labels are silently truncated rather than rejected, because the caps
// double as output-format compatibility constraints.
const (
	MaxChannels = 300
	maxNameLen  = 23
	maxUnitLen  = 11
	maxLabelLen = 39
)
