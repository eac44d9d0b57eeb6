// Package emulator provides a simulated ECU behind the protocol.Transport
// interface for development without hardware and for integration tests. It
// answers the identify, mode-switch and telemetry-read commands with
// properly framed responses carrying a generated waveform.
package emulator

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/shaunagostinho/rusefi-datalog/internal/protocol"
)

// DefaultSignature is the firmware signature the emulator reports.
const DefaultSignature = "rusEFI 2024.08.emu"

// DefaultBlockSize is the telemetry block size DefaultINI declares.
const DefaultBlockSize = 32

// DefaultINI is a schema file matching the emulator's blob layout. Demo
// mode seeds it into the data directory as DEFAULT.INI.
const DefaultINI = `; emulator channel definitions
ochBlockSize = 32

[OutputChannels]
seconds  = scalar, U16, 0, "s", 1, 0
RPM      = scalar, U16, 2, "RPM", 1, 0
coolant  = scalar, S16, 4, "deg C", 0.1, 0
TPS      = scalar, U08, 6, "%", 0.5, 0
battery  = scalar, U16, 8, "V", 0.001, 0
MAP      = scalar, U16, 10, "kPa", 0.1, 0
AFR      = scalar, F32, 12, "AFR", 1, 0

[Datalog]
entry = RPM, "RPM", int
entry = coolant, "Coolant", float
entry = TPS, "Throttle", float
entry = AFR, "AFR", float
`

// ECU is the simulated device. Writes are parsed as commands and responses
// appear on the read side, so it plugs in wherever a serial port would.
type ECU struct {
	mu        sync.Mutex
	present   bool
	framed    bool
	signature string

	rx []byte // host -> ecu, partial command bytes
	tx []byte // ecu -> host, pending response bytes

	t float64 // virtual time for the waveform
}

// New creates a present, unframed emulator.
func New() *ECU {
	return &ECU{present: true, signature: DefaultSignature}
}

// SetPresent simulates attach/detach.
func (e *ECU) SetPresent(p bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.present = p
	if !p {
		e.rx = nil
		e.tx = nil
		e.framed = false
	}
}

func (e *ECU) Present() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.present
}

func (e *ECU) SetControlLines(dtr, rts bool) error { return nil }

func (e *ECU) Service() {}

func (e *ECU) Drain() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tx = nil
}

func (e *ECU) Read(p []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := copy(p, e.tx)
	e.tx = e.tx[n:]
	return n, nil
}

func (e *ECU) Write(p []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.present {
		return len(p), nil
	}
	e.rx = append(e.rx, p...)
	e.process()
	return len(p), nil
}

// process consumes complete commands from rx and queues responses on tx.
func (e *ECU) process() {
	for len(e.rx) > 0 {
		if !e.framed {
			cmd := e.rx[0]
			e.rx = e.rx[1:]
			switch cmd {
			case protocol.CmdIdentify:
				e.tx = append(e.tx, e.signature...)
				e.tx = append(e.tx, '\n')
			case protocol.CmdModeSwitch:
				e.tx = append(e.tx, "001\n"...)
				e.framed = true
			}
			continue
		}

		// Framed mode: [u16 BE len][body][u32 BE crc].
		if len(e.rx) < 2 {
			return
		}
		size := int(binary.BigEndian.Uint16(e.rx[:2]))
		total := 2 + size + 4
		if len(e.rx) < total {
			return
		}
		body := e.rx[2 : 2+size]
		crc := binary.BigEndian.Uint32(e.rx[2+size : total])
		e.rx = e.rx[total:]
		if size == 0 || crc != protocol.Checksum(body) {
			continue // corrupt frame, ignored
		}
		if body[0] == protocol.CmdReadTelemetry && len(body) == 5 {
			count := int(binary.LittleEndian.Uint16(body[3:5]))
			e.respondTelemetry(count)
		}
	}
}

func (e *ECU) respondTelemetry(count int) {
	blob := e.generateBlob(count)
	resp := binary.BigEndian.AppendUint16(nil, uint16(1+len(blob)))
	resp = append(resp, 0x00) // status
	resp = append(resp, blob...)
	resp = binary.LittleEndian.AppendUint32(resp, protocol.Checksum(resp[2:]))
	e.tx = append(e.tx, resp...)
}

// generateBlob fills count bytes with the waveform at the DefaultINI
// offsets. Requests larger than the layout are zero-padded.
func (e *ECU) generateBlob(count int) []byte {
	e.t += 0.05

	blob := make([]byte, count)
	put16 := func(off int, v uint16) {
		if off+2 <= count {
			binary.LittleEndian.PutUint16(blob[off:], v)
		}
	}

	rpm := 850 + 4000*math.Sin(e.t*0.3)*math.Sin(e.t*0.3)
	tps := (rpm - 850) / (8000 - 850) * 100

	put16(0, uint16(e.t))
	put16(2, uint16(rpm))
	put16(4, uint16(int16((85+3*math.Sin(e.t*0.05))*10))) // coolant, 0.1 deg
	if count > 6 {
		blob[6] = uint8(tps * 2) // 0.5% steps
	}
	put16(8, uint16(13800+200*math.Sin(e.t)))
	put16(10, uint16((30+tps*1.7)*10))
	if count >= 16 {
		afr := 14.7 - tps/100*1.5
		binary.LittleEndian.PutUint32(blob[12:], math.Float32bits(float32(afr)))
	}
	return blob
}
