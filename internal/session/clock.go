package session

import (
	"sync"
	"time"
)

// Clock is the wall-clock collaborator. It is consulted only to name log
// files; Valid reports whether the time can be trusted for that.
type Clock interface {
	Now() time.Time
	Valid() bool
}

// SystemClock trusts the host's clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
func (SystemClock) Valid() bool    { return true }

// SettableClock starts invalid and becomes valid once an operator sets it,
// advancing monotonically from the set point. Models a device with no
// battery-backed RTC.
type SettableClock struct {
	mu    sync.Mutex
	base  time.Time
	setAt time.Time
	valid bool
}

// Set establishes the wall-clock time as of now.
func (c *SettableClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.base = t
	c.setAt = time.Now()
	c.valid = true
}

func (c *SettableClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid {
		return time.Time{}
	}
	return c.base.Add(time.Since(c.setAt))
}

func (c *SettableClock) Valid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.valid
}
