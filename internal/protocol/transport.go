package protocol

import "errors"

// Transport is the byte-stream link to the ECU. Implementations own the
// underlying device (serial port, emulator) and provide no framing of their
// own; the protocol engine layers framing on top.
//
// Read must return promptly: (0, nil) means no data is currently pending,
// not end of stream. The engine's deadline loops rely on that.
type Transport interface {
	// Present reports whether the device is currently attached.
	Present() bool
	// SetControlLines asserts or clears DTR/RTS.
	SetControlLines(dtr, rts bool) error
	// Read fills p with pending bytes, returning promptly.
	Read(p []byte) (int, error)
	// Write sends p to the device.
	Write(p []byte) (int, error)
	// Drain discards any pending received bytes.
	Drain()
	// Service pumps the transport's internal machinery. Long-running
	// operations (schema parsing, deadline waits) must call this
	// periodically so a bounded receive buffer cannot overflow.
	Service()
}

// Protocol failure taxonomy. All of these are recovered by the session
// layer: identify-phase timeouts retry, telemetry failures skip one poll
// cycle.
var (
	ErrTimeout    = errors.New("protocol: timeout")
	ErrShortFrame = errors.New("protocol: short frame")
	ErrBadStatus  = errors.New("protocol: bad status")
)
