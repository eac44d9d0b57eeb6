package status

import "testing"

type captureNotifier struct {
	got []string
}

func (c *captureNotifier) Notify(p Pattern, msg string) {
	c.got = append(c.got, p.Name+":"+msg)
}

func TestMultiNotifierFansOut(t *testing.T) {
	a := &captureNotifier{}
	b := &captureNotifier{}
	m := MultiNotifier{a, b}

	m.Notify(PatternLogging, "started")

	for _, c := range []*captureNotifier{a, b} {
		if len(c.got) != 1 || c.got[0] != "logging:started" {
			t.Fatalf("notifications = %v", c.got)
		}
	}
}

func TestPatternNamesDistinct(t *testing.T) {
	seen := map[string]bool{}
	for _, p := range []Pattern{PatternWait, PatternConnect, PatternLogging, PatternError} {
		if p.Name == "" || seen[p.Name] {
			t.Fatalf("pattern name %q empty or duplicated", p.Name)
		}
		seen[p.Name] = true
	}
	// Error is solid-on: no blink cadence.
	if PatternError.OnMs != 0 || PatternError.OffMs != 0 {
		t.Fatalf("error pattern should be solid, got %+v", PatternError)
	}
}
