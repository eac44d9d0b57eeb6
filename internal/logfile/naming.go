package logfile

import (
	"errors"
	"fmt"
	"time"
)

// maxSequential is the last slot tried by the sequential naming scheme.
const maxSequential = 999

// ErrNoFreeSlot means every sequential log name already exists.
var ErrNoFreeSlot = errors.New("logfile: no free log slot (LOG001-LOG999 all exist)")

// NextLogName picks a fresh log filename. When the wall clock is valid the
// name is derived from the timestamp; otherwise (or when the timestamp name
// is already taken) the sequential LOGnnn scheme is scanned. ext is the
// format extension without a dot.
func NextLogName(s Store, ext string, now time.Time, clockValid bool) (string, error) {
	if clockValid {
		name := fmt.Sprintf("LOG_%s.%s", now.Format("20060102_150405"), ext)
		if !s.Exists(name) {
			return name, nil
		}
	}
	for i := 1; i <= maxSequential; i++ {
		name := fmt.Sprintf("LOG%03d.%s", i, ext)
		if !s.Exists(name) {
			return name, nil
		}
	}
	return "", ErrNoFreeSlot
}
