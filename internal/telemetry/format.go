package telemetry

import (
	"strconv"
	"strings"
	"time"

	"github.com/shaunagostinho/rusefi-datalog/internal/schema"
)

// Format selects the output row convention.
type Format int

const (
	// FormatCSV is the comma-delimited convention: a single header row
	// `Time(ms),name(unit),...`, values at 3 decimals with trailing
	// zeros (and a then-dangling point) stripped.
	FormatCSV Format = iota
	// FormatMSL is the tab-delimited convention used by log viewers: two
	// header rows (labels, then units), elapsed seconds at 3 decimals,
	// and per-entry float or truncated-integer rendering.
	FormatMSL
)

// Extension returns the log filename extension for the format.
func (f Format) Extension() string {
	if f == FormatMSL {
		return "MSL"
	}
	return "CSV"
}

// column is one resolved output column: a channel plus its presentation.
type column struct {
	ch    schema.Channel
	label string
	float bool
}

// Formatter renders header and data rows for one schema definition. It
// iterates the datalog ordering when non-empty, else the full channel table
// in natural order with every value rendered as floating point.
type Formatter struct {
	format Format
	cols   []column
}

// NewFormatter resolves the output column set for def.
func NewFormatter(format Format, def *schema.Definition) *Formatter {
	f := &Formatter{format: format}
	if len(def.Datalog) > 0 {
		for _, e := range def.Datalog {
			f.cols = append(f.cols, column{
				ch:    def.Channels[e.Channel],
				label: e.Label,
				float: e.RenderAsFloat,
			})
		}
		return f
	}
	for _, ch := range def.Channels {
		f.cols = append(f.cols, column{ch: ch, label: ch.Name, float: true})
	}
	return f
}

// Header returns the header lines for the log file: one line for CSV, two
// (labels then units) for MSL.
func (f *Formatter) Header() []string {
	if f.format == FormatMSL {
		var labels, units strings.Builder
		labels.WriteString("Time")
		units.WriteString("s")
		for _, c := range f.cols {
			labels.WriteByte('\t')
			labels.WriteString(c.label)
			units.WriteByte('\t')
			units.WriteString(c.ch.Unit)
		}
		return []string{labels.String(), units.String()}
	}

	var b strings.Builder
	b.WriteString("Time(ms)")
	for _, c := range f.cols {
		b.WriteByte(',')
		b.WriteString(c.label)
		if c.ch.Unit != "" {
			b.WriteByte('(')
			b.WriteString(c.ch.Unit)
			b.WriteByte(')')
		}
	}
	return []string{b.String()}
}

// Row renders one data row from a telemetry blob. elapsed is the time since
// logging started.
func (f *Formatter) Row(blob []byte, elapsed time.Duration) string {
	var b strings.Builder

	if f.format == FormatMSL {
		b.WriteString(strconv.FormatFloat(elapsed.Seconds(), 'f', 3, 64))
		for _, c := range f.cols {
			b.WriteByte('\t')
			v := Decode(blob, c.ch)
			if c.float {
				b.WriteString(strconv.FormatFloat(float64(v), 'f', 3, 32))
			} else {
				b.WriteString(strconv.FormatInt(int64(v), 10))
			}
		}
		return b.String()
	}

	b.WriteString(strconv.FormatInt(elapsed.Milliseconds(), 10))
	for _, c := range f.cols {
		b.WriteByte(',')
		b.WriteString(formatTrimmed(Decode(blob, c.ch)))
	}
	return b.String()
}

// Columns reports how many value columns a row will carry.
func (f *Formatter) Columns() int { return len(f.cols) }

// formatTrimmed renders v at fixed 3-decimal precision, then strips
// trailing zeros and a dangling decimal point:
// 2400.000 -> 2400, 14.500 -> 14.5, 0.000 -> 0.
func formatTrimmed(v float32) string {
	s := strconv.FormatFloat(float64(v), 'f', 3, 32)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	return s
}
