// Package serialport implements protocol.Transport over a serial-over-USB
// link using go.bug.st/serial.
package serialport

import (
	"fmt"
	"log"
	"strings"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

const (
	// readTimeout keeps Read prompt: the protocol engine supplies its own
	// deadline discipline on top.
	readTimeout = 20 * time.Millisecond
	// openRetryInterval rate-limits reopen attempts while absent.
	openRetryInterval = time.Second
	// drainWindow bounds the flush of stale bytes.
	drainWindow = 250 * time.Millisecond
)

// preferredVIDs are USB vendor IDs that look like an ECU-ish serial bridge:
// STM32 CDC, Arduino, FTDI, CH340, CP210x, Teensy.
var preferredVIDs = map[string]bool{
	"0483": true,
	"2341": true,
	"0403": true,
	"1A86": true,
	"10C4": true,
	"16C0": true,
}

// Config selects the device. Path "auto" scans USB serial ports by vendor
// ID preference.
type Config struct {
	Path string
	Baud int
}

// Port is the live transport. Not safe for concurrent use; the session
// loop is single-threaded.
type Port struct {
	cfg      Config
	port     serial.Port
	lastOpen time.Time
}

// New creates an unopened transport; Present drives the open attempts.
func New(cfg Config) *Port {
	if cfg.Baud == 0 {
		cfg.Baud = 115200
	}
	return &Port{cfg: cfg}
}

// Present reports device attachment, attempting a rate-limited open when
// the port is closed.
func (p *Port) Present() bool {
	if p.port != nil {
		return true
	}
	if time.Since(p.lastOpen) < openRetryInterval {
		return false
	}
	p.lastOpen = time.Now()
	if err := p.open(); err != nil {
		return false
	}
	return true
}

func (p *Port) open() error {
	path := p.cfg.Path
	if path == "" || path == "auto" {
		found, err := autoSelectPort()
		if err != nil {
			return err
		}
		path = found
	}

	mode := &serial.Mode{
		BaudRate: p.cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return fmt.Errorf("serialport: open %s: %w", path, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return fmt.Errorf("serialport: set timeout: %w", err)
	}
	p.port = port
	log.Printf("[serial] opened %s at %d baud", path, p.cfg.Baud)
	return nil
}

// autoSelectPort picks the first USB serial port with a preferred vendor
// ID, falling back to any USB serial port.
func autoSelectPort() (string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return "", fmt.Errorf("serialport: enumerate: %w", err)
	}
	var fallback string
	for _, pd := range ports {
		if !pd.IsUSB {
			continue
		}
		if preferredVIDs[strings.ToUpper(pd.VID)] {
			log.Printf("[serial] auto-selected %s (VID %s)", pd.Name, pd.VID)
			return pd.Name, nil
		}
		if fallback == "" {
			fallback = pd.Name
		}
	}
	if fallback != "" {
		log.Printf("[serial] auto-selected %s (no preferred VID match)", fallback)
		return fallback, nil
	}
	return "", fmt.Errorf("serialport: no USB serial port found")
}

func (p *Port) SetControlLines(dtr, rts bool) error {
	if p.port == nil {
		return fmt.Errorf("serialport: not open")
	}
	if err := p.port.SetDTR(dtr); err != nil {
		return fmt.Errorf("serialport: set DTR: %w", err)
	}
	if err := p.port.SetRTS(rts); err != nil {
		return fmt.Errorf("serialport: set RTS: %w", err)
	}
	return nil
}

func (p *Port) Read(buf []byte) (int, error) {
	if p.port == nil {
		return 0, fmt.Errorf("serialport: not open")
	}
	n, err := p.port.Read(buf)
	if err != nil {
		// A read error on a USB CDC port almost always means the
		// device went away; drop the port so Present reports absent.
		p.markAbsent(err)
		return 0, fmt.Errorf("serialport: read: %w", err)
	}
	return n, nil
}

func (p *Port) Write(buf []byte) (int, error) {
	if p.port == nil {
		return 0, fmt.Errorf("serialport: not open")
	}
	n, err := p.port.Write(buf)
	if err != nil {
		p.markAbsent(err)
		return n, fmt.Errorf("serialport: write: %w", err)
	}
	return n, nil
}

// Drain discards buffered input plus anything still trickling in, bounded
// by a short window.
func (p *Port) Drain() {
	if p.port == nil {
		return
	}
	p.port.ResetInputBuffer()
	buf := make([]byte, 256)
	deadline := time.Now().Add(drainWindow)
	for time.Now().Before(deadline) {
		n, err := p.port.Read(buf)
		if err != nil {
			p.markAbsent(err)
			return
		}
		if n == 0 {
			return
		}
	}
}

// Service is a no-op: the host OS pumps the USB stack.
func (p *Port) Service() {}

func (p *Port) markAbsent(err error) {
	log.Printf("[serial] device lost: %v", err)
	p.port.Close()
	p.port = nil
}

// Close releases the port.
func (p *Port) Close() error {
	if p.port == nil {
		return nil
	}
	err := p.port.Close()
	p.port = nil
	return err
}
