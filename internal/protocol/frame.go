package protocol

import (
	"encoding/binary"
	"fmt"
	"log"
	"time"
)

// Command bytes used by this logger. Only these three are spoken; the rest
// of the ECU command set is out of scope.
const (
	// CmdIdentify requests the firmware signature string (legacy line mode).
	CmdIdentify byte = 'S'
	// CmdModeSwitch switches the ECU into framed binary mode. It must be
	// sent exactly once per connection; the device treats a repeat as
	// undefined. The response is advisory and only logged.
	CmdModeSwitch byte = 'F'
	// CmdReadTelemetry reads a telemetry block (framed mode).
	CmdReadTelemetry byte = 'O'
)

// Timings holds the deadline discipline for both protocol modes. Overall
// bounds total wait for a response; Silence is the per-byte "still
// receiving" sub-deadline extended on every received byte.
type Timings struct {
	Overall time.Duration
	Silence time.Duration
}

// DefaultTimings matches the ECU firmware's response tolerances.
func DefaultTimings() Timings {
	return Timings{Overall: 2 * time.Second, Silence: 500 * time.Millisecond}
}

// Engine drives the request/response exchanges over a Transport. It is not
// safe for concurrent use; the session loop is single-threaded.
type Engine struct {
	tr          Transport
	timings     Timings
	lastCRCWarn time.Time
}

// NewEngine wraps a transport with the default timings.
func NewEngine(tr Transport) *Engine {
	return &Engine{tr: tr, timings: DefaultTimings()}
}

// SetTimings overrides the deadline discipline (tests use short deadlines).
func (e *Engine) SetTimings(t Timings) { e.timings = t }

// SendIdentify transmits the identify command. The response is collected
// separately via ReadSignature so the caller controls the retry cadence.
func (e *Engine) SendIdentify() error {
	if _, err := e.tr.Write([]byte{CmdIdentify}); err != nil {
		return fmt.Errorf("protocol: identify: %w", err)
	}
	return nil
}

// ReadSignature reads the ASCII signature response to an identify command.
func (e *Engine) ReadSignature() (string, error) {
	return ReadLine(e.tr, e.timings.Overall, e.timings.Silence)
}

// SwitchFramedMode sends the one-shot mode-switch command. Whatever the
// device answers is advisory only; it is logged and discarded.
func (e *Engine) SwitchFramedMode() error {
	e.tr.Drain()
	if _, err := e.tr.Write([]byte{CmdModeSwitch}); err != nil {
		return fmt.Errorf("protocol: mode switch: %w", err)
	}
	if resp, err := ReadLine(e.tr, e.timings.Overall, e.timings.Silence); err == nil {
		log.Printf("[proto] mode-switch response: %q", resp)
	}
	return nil
}

// BuildRequest assembles a framed binary request:
//
//	[u16 BE: len(cmd+params)][cmd][params][u32 BE: CRC32(cmd+params)]
//
// Multi-byte parameter fields are little-endian; the request CRC trailer is
// big-endian. The response trailer is little-endian (see ReadTelemetry).
// The asymmetry is a verified property of the device firmware.
func BuildRequest(cmd byte, params []byte) []byte {
	body := make([]byte, 0, 1+len(params))
	body = append(body, cmd)
	body = append(body, params...)

	frame := make([]byte, 0, 2+len(body)+4)
	frame = binary.BigEndian.AppendUint16(frame, uint16(len(body)))
	frame = append(frame, body...)
	frame = binary.BigEndian.AppendUint32(frame, Checksum(body))
	return frame
}

// ReadTelemetry requests one telemetry block of blockSize bytes and reads
// the framed response:
//
//	[u16 BE: M][status][data: M-1 bytes][u32 LE: checksum]
//
// Success requires the status byte 0x00 and exactly blockSize data bytes
// before the overall deadline. Failures are not retried here; the session
// decides whether the next poll cycle tries again.
func (e *Engine) ReadTelemetry(blockSize int) ([]byte, error) {
	e.tr.Drain()

	params := make([]byte, 0, 4)
	params = binary.LittleEndian.AppendUint16(params, 0) // offset, always 0
	params = binary.LittleEndian.AppendUint16(params, uint16(blockSize))
	if _, err := e.tr.Write(BuildRequest(CmdReadTelemetry, params)); err != nil {
		return nil, fmt.Errorf("protocol: telemetry request: %w", err)
	}

	// 2-byte size header + status + data + 4-byte checksum trailer.
	want := 2 + 1 + blockSize + 4
	resp, err := e.readFrame(want)
	if err != nil {
		return nil, err
	}

	size := int(binary.BigEndian.Uint16(resp[:2]))
	if size != blockSize+1 {
		return nil, fmt.Errorf("%w: frame size %d, want %d", ErrShortFrame, size, blockSize+1)
	}
	if status := resp[2]; status != 0x00 {
		return nil, fmt.Errorf("%w: 0x%02X", ErrBadStatus, status)
	}

	data := resp[3 : 3+blockSize]

	// The trailer is received but not enforced. A mismatch is worth a
	// log line.
	got := binary.LittleEndian.Uint32(resp[3+blockSize:])
	if calc := Checksum(resp[2 : 3+blockSize]); got != calc {
		if now := time.Now(); now.Sub(e.lastCRCWarn) > time.Second {
			e.lastCRCWarn = now
			log.Printf("[proto] response checksum mismatch: got 0x%08X, calc 0x%08X (ignored)", got, calc)
		}
	}
	return data, nil
}

// readFrame accumulates exactly want bytes under the two-tier deadline
// discipline: overall bounds total wait, each received byte extends the
// silence sub-deadline.
func (e *Engine) readFrame(want int) ([]byte, error) {
	resp := make([]byte, 0, want)
	buf := make([]byte, 256)

	deadline := time.Now().Add(e.timings.Overall)
	quiet := deadline

	for len(resp) < want {
		e.tr.Service()
		n, err := e.tr.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("protocol: read: %w", err)
		}
		if n > 0 {
			if len(resp)+n > want {
				n = want - len(resp)
			}
			resp = append(resp, buf[:n]...)
			quiet = time.Now().Add(e.timings.Silence)
			continue
		}
		now := time.Now()
		if now.After(deadline) || now.After(quiet) {
			return nil, fmt.Errorf("%w: got %d/%d bytes", ErrTimeout, len(resp), want)
		}
		time.Sleep(time.Millisecond)
	}
	return resp, nil
}
