package protocol

import "time"

// ReadLine reads an unframed ASCII response in legacy line mode: bytes are
// accumulated until a NUL or '\n' terminator. Two deadlines bound the wait:
// overall caps total time, and silence is extended on every received
// printable byte, so a slow trickle is tolerated without waiting the full
// overall timeout while a stalled link still fails quickly.
//
// Non-printable bytes (< 0x20) other than the terminators are discarded.
// Returns ErrTimeout if nothing non-empty arrived before the deadline.
func ReadLine(t Transport, overall, silence time.Duration) (string, error) {
	var out []byte
	buf := make([]byte, 64)

	deadline := time.Now().Add(overall)
	// No silence constraint until the first byte: the device may take a
	// while to start answering, but once it does, gaps are bounded.
	quiet := deadline

	for {
		t.Service()
		n, err := t.Read(buf)
		if err != nil {
			break
		}
		if n == 0 {
			// Non-blocking transports return immediately; don't peg a core
			// while waiting out the deadline.
			time.Sleep(time.Millisecond)
		}
		for i := 0; i < n; i++ {
			c := buf[i]
			if c == 0 || c == '\n' {
				if len(out) > 0 {
					return string(out), nil
				}
				continue // leading terminator from a stale response
			}
			if c >= 0x20 {
				out = append(out, c)
				quiet = time.Now().Add(silence)
			}
		}
		now := time.Now()
		if now.After(deadline) || now.After(quiet) {
			break
		}
	}

	if len(out) > 0 {
		return string(out), nil
	}
	return "", ErrTimeout
}
