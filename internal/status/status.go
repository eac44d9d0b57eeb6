// Package status carries the human-visible side of the logger: indicator
// patterns, the Notifier the session reports through, and the WebSocket hub
// that exposes status and operator commands.
package status

import "log"

// Pattern is an indicator blink pattern. OnMs == OffMs == 0 means solid on.
type Pattern struct {
	Name string `json:"name"`
	OnMs int    `json:"onMs"`
	OffMs int   `json:"offMs"`
}

// The four indicator patterns, as data so remote clients can render them.
var (
	PatternWait    = Pattern{Name: "wait", OnMs: 500, OffMs: 500}
	PatternConnect = Pattern{Name: "connect", OnMs: 100, OffMs: 100}
	PatternLogging = Pattern{Name: "logging", OnMs: 50, OffMs: 950}
	PatternError   = Pattern{Name: "error"}
)

// Notifier receives status changes. Failures are reported here, never by
// terminating the process.
type Notifier interface {
	Notify(p Pattern, msg string)
}

// Command is an operator command delivered to the session.
type Command int

const (
	// CommandStop closes the current log and pauses polling.
	CommandStop Command = iota
	// CommandResume opens a fresh log and resumes polling.
	CommandResume
)

// LogNotifier writes notifications to the process log.
type LogNotifier struct{}

func (LogNotifier) Notify(p Pattern, msg string) {
	log.Printf("[status] %s: %s", p.Name, msg)
}

// MultiNotifier fans a notification out to several notifiers.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(p Pattern, msg string) {
	for _, n := range m {
		n.Notify(p, msg)
	}
}
