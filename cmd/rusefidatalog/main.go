package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shaunagostinho/rusefi-datalog/internal/config"
	"github.com/shaunagostinho/rusefi-datalog/internal/emulator"
	"github.com/shaunagostinho/rusefi-datalog/internal/logfile"
	"github.com/shaunagostinho/rusefi-datalog/internal/protocol"
	"github.com/shaunagostinho/rusefi-datalog/internal/schema"
	"github.com/shaunagostinho/rusefi-datalog/internal/serialport"
	"github.com/shaunagostinho/rusefi-datalog/internal/session"
	"github.com/shaunagostinho/rusefi-datalog/internal/status"
	"github.com/shaunagostinho/rusefi-datalog/internal/telemetry"
)

// tickInterval is the state machine cadence. Finer than the poll interval
// so command handling and disconnect detection stay responsive.
const tickInterval = 10 * time.Millisecond

func main() {
	configPath := flag.String("config", "/etc/rusefi-datalog/config.yaml", "Path to config file")
	demo := flag.Bool("demo", false, "Run against a built-in ECU emulator")
	port := flag.String("port", "", "Override serial port (e.g. /dev/ttyACM0)")
	dataDir := flag.String("data", "", "Override data directory")
	listenAddr := flag.String("listen", "", "Override status hub listen address (e.g. :8080)")
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("[main] rusefi-datalog starting")

	// A broken checksum routine would corrupt every frame on the wire, so
	// refuse to start rather than log garbage.
	if err := protocol.SelfTest(); err != nil {
		log.Fatalf("[main] %v", err)
	}

	cfg := config.Load(*configPath)
	if *port != "" {
		cfg.Serial.Port = *port
	}
	if *dataDir != "" {
		cfg.Data.Dir = *dataDir
	}
	if *listenAddr != "" {
		cfg.Hub.Enabled = true
		cfg.Hub.ListenAddr = *listenAddr
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("[main] received %v, shutting down", sig)
		cancel()
	}()

	store, err := logfile.NewDirStore(cfg.Data.Dir)
	if err != nil {
		log.Fatalf("[main] %v", err)
	}
	log.Printf("[main] data directory %s", store.Dir())

	var tr protocol.Transport
	if *demo {
		log.Println("[main] demo mode: using ECU emulator")
		tr = emulator.New()
		if !store.Exists(schema.FallbackFilename) {
			if err := store.WriteFile(schema.FallbackFilename, []byte(emulator.DefaultINI)); err != nil {
				log.Fatalf("[main] seed %s: %v", schema.FallbackFilename, err)
			}
			log.Printf("[main] seeded %s for the emulator", schema.FallbackFilename)
		}
	} else {
		tr = serialport.New(serialport.Config{Path: cfg.Serial.Port, Baud: cfg.Serial.Baud})
	}

	sessCfg := session.DefaultConfig()
	if cfg.Poll.IntervalMs > 0 {
		sessCfg.PollInterval = time.Duration(cfg.Poll.IntervalMs) * time.Millisecond
	}
	if cfg.Poll.SettleDelayMs > 0 {
		sessCfg.SettleDelay = time.Duration(cfg.Poll.SettleDelayMs) * time.Millisecond
	}
	if cfg.Poll.ResponseTimeoutMs > 0 {
		sessCfg.Timings.Overall = time.Duration(cfg.Poll.ResponseTimeoutMs) * time.Millisecond
	}
	if cfg.Poll.SilenceTimeoutMs > 0 {
		sessCfg.Timings.Silence = time.Duration(cfg.Poll.SilenceTimeoutMs) * time.Millisecond
	}
	if cfg.Data.SyncIntervalMs > 0 {
		sessCfg.SyncInterval = time.Duration(cfg.Data.SyncIntervalMs) * time.Millisecond
	}
	if cfg.Data.Format == "msl" {
		sessCfg.Format = telemetry.FormatMSL
	}

	// The host has a real clock; the settable clock only matters when this
	// runs on a board that boots at the epoch and learns the time from an
	// operator over the hub.
	clock := &session.SettableClock{}
	clock.Set(time.Now())

	notify := status.MultiNotifier{status.LogNotifier{}}
	var cmds <-chan status.Command
	var hub *status.Hub
	if cfg.Hub.Enabled {
		hub = status.NewHub(cfg.Hub.ListenAddr)
		hub.OnClockSet = func(t time.Time) {
			log.Printf("[main] clock set to %s by operator", t.Format(time.RFC3339))
			clock.Set(t)
		}
		notify = append(notify, hub)
		cmds = hub.Commands()
		go func() {
			if err := hub.Run(ctx); err != nil {
				log.Printf("[main] hub exited: %v", err)
			}
		}()
	}

	sess := session.New(sessCfg, tr, store, clock, notify, cmds)
	if hub != nil {
		sess.PublishRow = hub.PublishRow
	}
	notify.Notify(status.PatternWait, "waiting for device")

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			sess.Close()
			log.Println("[main] stopped")
			return
		case now := <-ticker.C:
			sess.Tick(now)
		}
	}
}
