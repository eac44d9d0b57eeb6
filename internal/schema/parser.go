package schema

import (
	"fmt"
	"log"
	"strconv"
	"strings"
)

// Section headers recognized by exact literal match. Any other bracketed
// header deactivates both sections.
const (
	sectionChannels = "[OutputChannels]"
	sectionDatalog  = "[Datalog]"
)

// yieldEvery is how many lines are processed between yield calls, so a
// large file cannot starve the transport's bounded receive buffer.
const yieldEvery = 64

// Parse converts schema text into a Definition. bufferCapacity is the size
// of the telemetry receive buffer; the declared block size and every channel
// placement are validated against it. yield, if non-nil, is invoked
// periodically during the parse so the caller can service the transport.
//
// Individual malformed channel or entry lines are skipped; the parse fails
// only for the fatal conditions listed in schema.go.
func Parse(text string, bufferCapacity int, yield func()) (*Definition, error) {
	def := &Definition{}

	section := ""
	skipped := 0
	lineNo := 0

	for len(text) > 0 {
		var line string
		if i := strings.IndexByte(text, '\n'); i >= 0 {
			line, text = text[:i], text[i+1:]
		} else {
			line, text = text, ""
		}

		lineNo++
		if yield != nil && lineNo%yieldEvery == 0 {
			yield()
		}

		if i := strings.IndexByte(line, ';'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if line[0] == '[' {
			section = line
			continue
		}

		// The block size directive may appear anywhere in the file;
		// only the first occurrence counts.
		if def.BlockSize == 0 && strings.HasPrefix(line, "ochBlockSize") {
			if _, val, ok := strings.Cut(line, "="); ok {
				if n, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
					def.BlockSize = n
				}
			}
		}

		switch section {
		case sectionChannels:
			if len(def.Channels) >= MaxChannels {
				skipped++
				continue
			}
			if ch, ok := parseChannelLine(line, bufferCapacity); ok {
				def.Channels = append(def.Channels, ch)
			}
		case sectionDatalog:
			if entry, ok := parseDatalogLine(line, def.Channels); ok {
				def.Datalog = append(def.Datalog, entry)
			}
		}
	}

	if skipped > 0 {
		log.Printf("[schema] channel cap reached, %d lines ignored", skipped)
	}

	if def.BlockSize == 0 {
		return nil, ErrMissingBlockSize
	}
	if def.BlockSize > bufferCapacity {
		return nil, fmt.Errorf("%w: %d > %d", ErrBlockSizeTooBig, def.BlockSize, bufferCapacity)
	}
	if len(def.Channels) == 0 {
		return nil, ErrNoChannels
	}

	def.dropOutOfRange()
	return def, nil
}

// dropOutOfRange rejects channels whose field would extend past the
// declared block size. Rejection is per channel, not fatal to the parse.
func (def *Definition) dropOutOfRange() {
	kept := def.Channels[:0]
	remap := make([]int, len(def.Channels))
	for i, ch := range def.Channels {
		if int(ch.Offset)+ch.Type.Width() > def.BlockSize {
			log.Printf("[schema] channel %s: offset %d+%d exceeds block size %d, dropped",
				ch.Name, ch.Offset, ch.Type.Width(), def.BlockSize)
			remap[i] = -1
			continue
		}
		remap[i] = len(kept)
		kept = append(kept, ch)
	}
	if len(kept) == len(def.Channels) {
		return
	}
	def.Channels = kept

	entries := def.Datalog[:0]
	for _, e := range def.Datalog {
		if idx := remap[e.Channel]; idx >= 0 {
			e.Channel = idx
			entries = append(entries, e)
		}
	}
	def.Datalog = entries
}

// typeAliases is the fixed TYPE token table. Unrecognized tokens reject the
// whole line.
var typeAliases = map[string]TypeCode{
	"U08": U8, "UBYTE": U8,
	"S08": S8, "BYTE": S8,
	"U16": U16, "UINT": U16,
	"S16": S16, "INT": S16,
	"U32": U32, "ULONG": U32,
	"S32": S32, "LONG": S32,
	"F32": F32, "FLOAT": F32,
}

// parseChannelLine parses one channel definition:
//
//	name = scalar, TYPE, OFFSET, "UNIT", MUL, ADD[, ...]
//
// Only scalar channels are supported; bit-field and array kinds are
// silently skipped. Trailing fields beyond ADD are ignored.
func parseChannelLine(line string, bufferCapacity int) (Channel, bool) {
	lhs, rhs, ok := strings.Cut(line, "=")
	if !ok {
		return Channel{}, false
	}

	name := condenseName(lhs)
	if name == "" {
		return Channel{}, false
	}

	rest := strings.TrimSpace(rhs)
	kind, rest := nextField(rest)
	if kind != "scalar" {
		return Channel{}, false
	}

	typeTok, rest := nextField(rest)
	tc, ok := typeAliases[typeTok]
	if !ok {
		return Channel{}, false
	}

	offTok, rest := nextField(rest)
	off, err := strconv.Atoi(offTok)
	if err != nil || off < 0 || off+tc.Width() > bufferCapacity {
		return Channel{}, false
	}

	unit, rest := nextField(rest)
	unit = truncate(unit, maxUnitLen)

	mulTok, rest := nextField(rest)
	mul, ok := parseCoeff(mulTok)
	if !ok {
		return Channel{}, false
	}

	addTok, _ := nextField(rest)
	add, ok := parseCoeff(addTok)
	if !ok {
		return Channel{}, false
	}

	return Channel{
		Name:   truncate(name, maxNameLen),
		Unit:   unit,
		Offset: uint16(off),
		Type:   tc,
		Mul:    mul,
		Add:    add,
	}, true
}

// parseDatalogLine parses one output-ordering entry:
//
//	entry = CHANNEL_NAME, "LABEL", TYPE_STRING[, ...]
//
// The channel name is resolved against the already-parsed table; no match
// drops the entry silently. TYPE_STRING "float" selects float rendering.
func parseDatalogLine(line string, channels []Channel) (DatalogEntry, bool) {
	lhs, rhs, ok := strings.Cut(line, "=")
	if !ok || strings.TrimSpace(lhs) != "entry" {
		return DatalogEntry{}, false
	}

	rest := strings.TrimSpace(rhs)
	name, rest := nextField(rest)
	if name == "" {
		return DatalogEntry{}, false
	}

	idx := -1
	for i, ch := range channels {
		if ch.Name == name {
			idx = i // first match wins on duplicate names
			break
		}
	}
	if idx < 0 {
		return DatalogEntry{}, false
	}

	label, rest := nextField(rest)
	if label == "" {
		label = name
	}
	typeStr, _ := nextField(rest)

	return DatalogEntry{
		Label:         truncate(label, maxLabelLen),
		Channel:       idx,
		RenderAsFloat: typeStr == "float",
	}, true
}

// nextField consumes one comma-delimited field, stripping surrounding
// whitespace and optional double quotes. A quoted field has no escape
// mechanism: the field ends at the closing quote.
func nextField(s string) (field, rest string) {
	s = strings.TrimLeft(s, " \t")
	if strings.HasPrefix(s, `"`) {
		s = s[1:]
		if i := strings.IndexByte(s, '"'); i >= 0 {
			field, s = s[:i], s[i+1:]
		} else {
			field, s = s, ""
		}
		s = strings.TrimLeft(s, " \t")
		if strings.HasPrefix(s, ",") {
			s = s[1:]
		}
		return strings.TrimSpace(field), s
	}
	if i := strings.IndexByte(s, ','); i >= 0 {
		return strings.TrimSpace(s[:i]), s[i+1:]
	}
	return strings.TrimSpace(s), ""
}

// parseCoeff parses MUL/ADD coefficients. Both are positionally required,
// but a textually empty field parses to 0.
func parseCoeff(tok string) (float32, bool) {
	if tok == "" {
		return 0, true
	}
	f, err := strconv.ParseFloat(tok, 32)
	if err != nil {
		return 0, false
	}
	return float32(f), true
}

// condenseName drops all whitespace from the name portion before '='.
func condenseName(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r != ' ' && r != '\t' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
