// Package session drives the logger's lifecycle: device wait, handshake,
// schema acquisition, and continuous polling, under partial failure. The
// machine is clock-driven: an external loop calls Tick at a fixed cadence
// and every wait is a comparison against a stored deadline, so there is one
// logical thread of control and no locking.
package session

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shaunagostinho/rusefi-datalog/internal/logfile"
	"github.com/shaunagostinho/rusefi-datalog/internal/protocol"
	"github.com/shaunagostinho/rusefi-datalog/internal/schema"
	"github.com/shaunagostinho/rusefi-datalog/internal/status"
	"github.com/shaunagostinho/rusefi-datalog/internal/telemetry"
)

// State enumerates the session lifecycle.
type State int

const (
	StateWaitDevice State = iota
	StateAssertHandshake
	StateAwaitSignature
	StateLoadSchema
	StateLogging
	StateStopped
	StateErrorStorage
	StateErrorSchema
)

func (s State) String() string {
	switch s {
	case StateWaitDevice:
		return "WaitDevice"
	case StateAssertHandshake:
		return "AssertHandshake"
	case StateAwaitSignature:
		return "AwaitSignature"
	case StateLoadSchema:
		return "LoadSchema"
	case StateLogging:
		return "Logging"
	case StateStopped:
		return "Stopped"
	case StateErrorStorage:
		return "ErrorStorage"
	case StateErrorSchema:
		return "ErrorSchema"
	}
	return "?"
}

// Config holds the session's timing and format knobs.
type Config struct {
	BufferCapacity   int           // telemetry receive buffer size
	PollInterval     time.Duration // telemetry poll cadence
	SyncInterval     time.Duration // storage flush cadence
	SettleDelay      time.Duration // wait after device attach before handshake
	ReminderInterval time.Duration // ErrorSchema re-announce cadence
	Format           telemetry.Format
	Timings          protocol.Timings
}

// DefaultConfig: 20 Hz polling, 5 s sync cadence, 2 KiB telemetry buffer.
func DefaultConfig() Config {
	return Config{
		BufferCapacity:   2048,
		PollInterval:     50 * time.Millisecond,
		SyncInterval:     5 * time.Second,
		SettleDelay:      500 * time.Millisecond,
		ReminderInterval: 10 * time.Second,
		Format:           telemetry.FormatCSV,
		Timings:          protocol.DefaultTimings(),
	}
}

// Session owns all mutable logger state. It is created once at process
// start and never destroyed; a device disconnect clears the per-connection
// fields and returns it to WaitDevice.
type Session struct {
	cfg    Config
	tr     protocol.Transport
	eng    *protocol.Engine
	store  logfile.Store
	clock  Clock
	notify status.Notifier
	cmds   <-chan status.Command

	// PublishRow, if non-nil, receives each formatted row (live view).
	PublishRow func(string)

	state      State
	stateEnter time.Time

	// Per-connection fields, replaced wholesale on reconnect.
	signature string
	iniName   string
	def       *schema.Definition
	fmtr      *telemetry.Formatter
	writer    *logfile.Writer
	logStart  time.Time
	lastPoll  time.Time
}

// New wires a session to its collaborators. cmds may be nil when no
// operator surface is attached.
func New(cfg Config, tr protocol.Transport, store logfile.Store, clock Clock, notify status.Notifier, cmds <-chan status.Command) *Session {
	eng := protocol.NewEngine(tr)
	eng.SetTimings(cfg.Timings)
	return &Session{
		cfg:    cfg,
		tr:     tr,
		eng:    eng,
		store:  store,
		clock:  clock,
		notify: notify,
		cmds:   cmds,
		state:  StateWaitDevice,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// Signature returns the ECU signature of the current connection.
func (s *Session) Signature() string { return s.signature }

func (s *Session) enter(st State, now time.Time) {
	log.Printf("[session] %s -> %s", s.state, st)
	s.state = st
	s.stateEnter = now
}

// Tick advances the state machine. It is the single entry point; the
// caller invokes it at a fixed cadence.
func (s *Session) Tick(now time.Time) {
	s.tr.Service()
	s.drainCommands(now)

	if s.state == StateErrorStorage {
		return // terminal, no recovery without external reset
	}

	// Device removal from any active state resets the connection.
	if !s.tr.Present() && s.state != StateWaitDevice && s.state != StateStopped {
		s.onDisconnect(now)
		return
	}

	switch s.state {
	case StateWaitDevice:
		if s.tr.Present() {
			log.Printf("[session] device detected")
			s.notify.Notify(status.PatternConnect, "device detected")
			s.enter(StateAssertHandshake, now)
		}

	case StateAssertHandshake:
		if now.Sub(s.stateEnter) < s.cfg.SettleDelay {
			return
		}
		if err := s.tr.SetControlLines(true, true); err != nil {
			log.Printf("[session] control lines: %v", err)
		}
		s.tr.Drain()
		if err := s.eng.SendIdentify(); err != nil {
			log.Printf("[session] identify send: %v", err)
		}
		s.enter(StateAwaitSignature, now)

	case StateAwaitSignature:
		sig, err := s.eng.ReadSignature()
		if err != nil {
			// Unbounded retries: resend and wait again next tick.
			log.Printf("[session] no signature (%v), retrying", err)
			s.tr.Drain()
			if err := s.eng.SendIdentify(); err != nil {
				log.Printf("[session] identify send: %v", err)
			}
			s.stateEnter = now
			return
		}
		s.signature = sig
		s.iniName = schema.Filename(sig)
		log.Printf("[session] signature %q, schema file %s (fallback %s)",
			sig, s.iniName, schema.FallbackFilename)
		s.enter(StateLoadSchema, now)

	case StateLoadSchema:
		s.loadSchemaAndStart(now)

	case StateLogging:
		s.pollOnce(now)

	case StateStopped:
		// Idle until a resume command or process exit.

	case StateErrorSchema:
		if now.Sub(s.stateEnter) >= s.cfg.ReminderInterval {
			s.stateEnter = now
			s.notify.Notify(status.PatternError, fmt.Sprintf(
				"waiting for schema file: expected %s or %s", s.iniName, schema.FallbackFilename))
		}
	}
}

// loadSchemaAndStart performs the one-time per-connection sequence: parse
// the schema, switch the ECU into framed mode, open a log, write headers.
func (s *Session) loadSchemaAndStart(now time.Time) {
	def, err := s.loadSchema()
	if err != nil {
		log.Printf("[session] schema load failed: %v", err)
		s.notify.Notify(status.PatternError, fmt.Sprintf(
			"schema load failed: %v (expected %s or %s)", err, s.iniName, schema.FallbackFilename))
		s.enter(StateErrorSchema, now)
		return
	}
	s.def = def
	log.Printf("[session] schema: %d channels, %d datalog entries, block size %d",
		len(def.Channels), len(def.Datalog), def.BlockSize)

	// Exactly once per connection; the device treats a repeat as undefined.
	if err := s.eng.SwitchFramedMode(); err != nil {
		log.Printf("[session] mode switch: %v", err)
	}

	s.fmtr = telemetry.NewFormatter(s.cfg.Format, def)
	if !s.openLog(now) {
		return
	}
	s.notify.Notify(status.PatternLogging, fmt.Sprintf(
		"logging %d channels to %s", s.fmtr.Columns(), s.writer.Name()))
	s.enter(StateLogging, now)
}

func (s *Session) loadSchema() (*schema.Definition, error) {
	name := s.iniName
	if !s.store.Exists(name) {
		if !s.store.Exists(schema.FallbackFilename) {
			return nil, errors.New("schema file not found")
		}
		log.Printf("[session] %s absent, trying %s", name, schema.FallbackFilename)
		name = schema.FallbackFilename
	}
	text, err := s.store.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	// Yield to the transport while parsing so its receive buffer cannot
	// overflow during a large file.
	return schema.Parse(string(text), s.cfg.BufferCapacity, s.tr.Service)
}

// openLog opens a fresh log file and writes the header. Returns false after
// driving the session into ErrorStorage.
func (s *Session) openLog(now time.Time) bool {
	name, err := logfile.NextLogName(s.store, s.cfg.Format.Extension(), s.clock.Now(), s.clock.Valid())
	if err == nil {
		s.writer, err = logfile.Open(s.store, name, s.cfg.SyncInterval, now)
	}
	if err == nil {
		err = s.writer.WriteHeader(s.fmtr.Header())
	}
	if err != nil {
		log.Printf("[session] log open failed: %v", err)
		s.notify.Notify(status.PatternError, fmt.Sprintf("storage error: %v", err))
		s.closeLog()
		s.enter(StateErrorStorage, now)
		return false
	}
	s.logStart = now
	s.lastPoll = now
	return true
}

// pollOnce runs one Logging tick: a telemetry read when the poll interval
// has elapsed, then the periodic storage sync. A failed read is skipped for
// this cycle only; the next tick retries.
func (s *Session) pollOnce(now time.Time) {
	if now.Sub(s.lastPoll) >= s.cfg.PollInterval {
		s.lastPoll = now
		blob, err := s.eng.ReadTelemetry(s.def.BlockSize)
		if err != nil {
			log.Printf("[session] poll failed: %v", err)
		} else {
			row := s.fmtr.Row(blob, now.Sub(s.logStart))
			if err := s.writer.WriteRow(row); err != nil {
				log.Printf("[session] %v", err)
			}
			if s.PublishRow != nil {
				s.PublishRow(row)
			}
		}
	}
	if err := s.writer.MaybeSync(now); err != nil {
		log.Printf("[session] %v", err)
	}
}

func (s *Session) drainCommands(now time.Time) {
	if s.cmds == nil {
		return
	}
	for {
		select {
		case cmd := <-s.cmds:
			s.handleCommand(cmd, now)
		default:
			return
		}
	}
}

func (s *Session) handleCommand(cmd status.Command, now time.Time) {
	switch cmd {
	case status.CommandStop:
		if s.state != StateLogging {
			return
		}
		s.closeLog()
		s.notify.Notify(status.PatternWait, "logging stopped by operator")
		s.enter(StateStopped, now)

	case status.CommandResume:
		if s.state != StateStopped || s.def == nil {
			return
		}
		// Same connection, same schema: fresh log file.
		if s.openLog(now) {
			s.notify.Notify(status.PatternLogging, fmt.Sprintf(
				"logging resumed to %s", s.writer.Name()))
			s.enter(StateLogging, now)
		}
	}
}

// onDisconnect flushes and closes any open log and discards all
// per-connection state. The session object itself survives.
func (s *Session) onDisconnect(now time.Time) {
	log.Printf("[session] device disconnected")
	s.closeLog()
	s.signature = ""
	s.iniName = ""
	s.def = nil
	s.fmtr = nil
	s.notify.Notify(status.PatternWait, "device disconnected")
	s.enter(StateWaitDevice, now)
}

// Close flushes and closes any open log. For process shutdown; the state
// machine itself needs no teardown.
func (s *Session) Close() {
	s.closeLog()
}

func (s *Session) closeLog() {
	if s.writer == nil {
		return
	}
	if err := s.writer.Close(); err != nil {
		log.Printf("[session] %v", err)
	}
	s.writer = nil
}
