package schema

import (
	"errors"
	"strconv"
	"strings"
	"testing"
)

const testCapacity = 2048

func parseOK(t *testing.T, text string) *Definition {
	t.Helper()
	def, err := Parse(text, testCapacity, nil)
	if err != nil {
		t.Fatalf("Parse() err = %v", err)
	}
	return def
}

func TestParseChannelRoundTrip(t *testing.T) {
	def := parseOK(t, `
ochBlockSize = 256
[OutputChannels]
RPM = scalar, U16, 4, "RPM", 1, 0
coolant = scalar, S16, 6, "deg C", 0.1, -40.0
fuelFlow = scalar, F32, 8, "cc/min", 1.0, 0
`)

	if def.BlockSize != 256 {
		t.Fatalf("BlockSize = %d, want 256", def.BlockSize)
	}
	if len(def.Channels) != 3 {
		t.Fatalf("channels = %d, want 3", len(def.Channels))
	}

	ch := def.Channels[1]
	if ch.Name != "coolant" || ch.Unit != "deg C" || ch.Offset != 6 || ch.Type != S16 {
		t.Fatalf("coolant channel = %+v", ch)
	}
	if ch.Mul != 0.1 || ch.Add != -40.0 {
		t.Fatalf("coolant coefficients = %v, %v", ch.Mul, ch.Add)
	}

	// Insertion order is file order.
	if def.Channels[0].Name != "RPM" || def.Channels[2].Name != "fuelFlow" {
		t.Fatalf("channel order = %s, %s, %s",
			def.Channels[0].Name, def.Channels[1].Name, def.Channels[2].Name)
	}
}

func TestParseTypeAliases(t *testing.T) {
	def := parseOK(t, `
ochBlockSize = 64
[OutputChannels]
a = scalar, UBYTE, 0, "", 1, 0
b = scalar, BYTE, 1, "", 1, 0
c = scalar, UINT, 2, "", 1, 0
d = scalar, INT, 4, "", 1, 0
e = scalar, ULONG, 6, "", 1, 0
f = scalar, LONG, 10, "", 1, 0
g = scalar, FLOAT, 14, "", 1, 0
`)
	want := []TypeCode{U8, S8, U16, S16, U32, S32, F32}
	if len(def.Channels) != len(want) {
		t.Fatalf("channels = %d, want %d", len(def.Channels), len(want))
	}
	for i, tc := range want {
		if def.Channels[i].Type != tc {
			t.Errorf("channel %d type = %v, want %v", i, def.Channels[i].Type, tc)
		}
	}
}

func TestParseSkipsNonScalarAndMalformed(t *testing.T) {
	def := parseOK(t, `
ochBlockSize = 128
[OutputChannels]
good = scalar, U08, 0, "", 1, 0
bitField = bits, U08, 1, [0:3]
arrayCh = array, U16, 2, [8], "", 1, 0
noType = scalar, X99, 3, "", 1, 0
= scalar, U08, 4, "", 1, 0
plainGarbage
also_good = scalar, U08, 5, "", 1, 0
`)
	if len(def.Channels) != 2 {
		t.Fatalf("channels = %d, want 2", len(def.Channels))
	}
	if def.Channels[0].Name != "good" || def.Channels[1].Name != "also_good" {
		t.Fatalf("kept %s, %s", def.Channels[0].Name, def.Channels[1].Name)
	}
}

func TestParseCommentsAndBlankLines(t *testing.T) {
	def := parseOK(t, `
; full-line comment
ochBlockSize = 32 ; trailing comment

[OutputChannels]
rpm = scalar, U16, 0, "RPM", 1, 0 ; inline
`)
	if def.BlockSize != 32 || len(def.Channels) != 1 {
		t.Fatalf("BlockSize = %d, channels = %d", def.BlockSize, len(def.Channels))
	}
}

func TestParseFirstBlockSizeWins(t *testing.T) {
	def := parseOK(t, `
ochBlockSize = 100
ochBlockSize = 999
[OutputChannels]
a = scalar, U08, 0, "", 1, 0
`)
	if def.BlockSize != 100 {
		t.Fatalf("BlockSize = %d, want 100", def.BlockSize)
	}
}

func TestParseFatalErrors(t *testing.T) {
	channels := `
[OutputChannels]
a = scalar, U08, 0, "", 1, 0
`
	if _, err := Parse(channels, testCapacity, nil); !errors.Is(err, ErrMissingBlockSize) {
		t.Errorf("missing size err = %v, want ErrMissingBlockSize", err)
	}
	if _, err := Parse("ochBlockSize = 0\n"+channels, testCapacity, nil); !errors.Is(err, ErrMissingBlockSize) {
		t.Errorf("zero size err = %v, want ErrMissingBlockSize", err)
	}
	if _, err := Parse("ochBlockSize = 5000\n"+channels, testCapacity, nil); !errors.Is(err, ErrBlockSizeTooBig) {
		t.Errorf("oversize err = %v, want ErrBlockSizeTooBig", err)
	}
	if _, err := Parse("ochBlockSize = 64\n[OutputChannels]\n", testCapacity, nil); !errors.Is(err, ErrNoChannels) {
		t.Errorf("empty err = %v, want ErrNoChannels", err)
	}
}

func TestParseDropsChannelPastBlockSize(t *testing.T) {
	// The out-of-range channel is rejected individually; the parse
	// still succeeds on the valid one.
	def := parseOK(t, `
ochBlockSize = 16
[OutputChannels]
inRange = scalar, U16, 14, "", 1, 0
pastEnd = scalar, U32, 14, "", 1, 0
`)
	if len(def.Channels) != 1 || def.Channels[0].Name != "inRange" {
		t.Fatalf("channels = %+v, want only inRange", def.Channels)
	}
}

func TestParseRejectsOffsetBeyondCapacity(t *testing.T) {
	def := parseOK(t, `
ochBlockSize = 64
[OutputChannels]
ok = scalar, U08, 0, "", 1, 0
far = scalar, U08, 4096, "", 1, 0
`)
	if len(def.Channels) != 1 {
		t.Fatalf("channels = %d, want 1", len(def.Channels))
	}
}

func TestParseDatalogSubset(t *testing.T) {
	def := parseOK(t, `
ochBlockSize = 64
[OutputChannels]
rpm = scalar, U16, 0, "RPM", 1, 0
clt = scalar, S16, 2, "C", 0.1, 0
tps = scalar, U08, 4, "%", 0.5, 0
[Datalog]
entry = tps, "Throttle", float
entry = rpm, "RPM", int
entry = missing, "Ghost", float
`)
	if len(def.Datalog) != 2 {
		t.Fatalf("datalog entries = %d, want 2", len(def.Datalog))
	}
	if e := def.Datalog[0]; e.Label != "Throttle" || def.Channels[e.Channel].Name != "tps" || !e.RenderAsFloat {
		t.Fatalf("entry 0 = %+v", e)
	}
	if e := def.Datalog[1]; e.Label != "RPM" || def.Channels[e.Channel].Name != "rpm" || e.RenderAsFloat {
		t.Fatalf("entry 1 = %+v", e)
	}
}

func TestParseDatalogDuplicateNameFirstWins(t *testing.T) {
	def := parseOK(t, `
ochBlockSize = 64
[OutputChannels]
val = scalar, U08, 0, "first", 1, 0
val = scalar, U08, 1, "second", 1, 0
[Datalog]
entry = val, "Value", float
`)
	if len(def.Datalog) != 1 {
		t.Fatalf("datalog entries = %d, want 1", len(def.Datalog))
	}
	if unit := def.Channels[def.Datalog[0].Channel].Unit; unit != "first" {
		t.Fatalf("resolved unit = %q, want first occurrence", unit)
	}
}

func TestParseUnknownSectionDeactivates(t *testing.T) {
	def := parseOK(t, `
ochBlockSize = 64
[OutputChannels]
a = scalar, U08, 0, "", 1, 0
[Constants]
b = scalar, U08, 1, "", 1, 0
`)
	if len(def.Channels) != 1 {
		t.Fatalf("channels = %d, want 1 ([Constants] must deactivate)", len(def.Channels))
	}
}

func TestParseEmptyCoefficientsAreZero(t *testing.T) {
	def := parseOK(t, `
ochBlockSize = 64
[OutputChannels]
a = scalar, U08, 0, "", ,
`)
	if len(def.Channels) != 1 {
		t.Fatalf("channels = %d, want 1", len(def.Channels))
	}
	if ch := def.Channels[0]; ch.Mul != 0 || ch.Add != 0 {
		t.Fatalf("coefficients = %v, %v, want 0, 0", ch.Mul, ch.Add)
	}
}

func TestParseScientificNotation(t *testing.T) {
	def := parseOK(t, `
ochBlockSize = 64
[OutputChannels]
a = scalar, U32, 0, "us", 1.0e-3, -1E2
`)
	ch := def.Channels[0]
	if ch.Mul != 0.001 || ch.Add != -100 {
		t.Fatalf("coefficients = %v, %v", ch.Mul, ch.Add)
	}
}

func TestParseTruncatesLongNames(t *testing.T) {
	long := strings.Repeat("n", 40)
	def := parseOK(t, `
ochBlockSize = 64
[OutputChannels]
`+long+` = scalar, U08, 0, "`+strings.Repeat("u", 20)+`", 1, 0
`)
	ch := def.Channels[0]
	if len(ch.Name) != maxNameLen || len(ch.Unit) != maxUnitLen {
		t.Fatalf("name len = %d, unit len = %d", len(ch.Name), len(ch.Unit))
	}
}

func TestParseChannelCap(t *testing.T) {
	var b strings.Builder
	b.WriteString("ochBlockSize = 2048\n[OutputChannels]\n")
	for i := 0; i < MaxChannels+25; i++ {
		b.WriteString("ch")
		b.WriteString(strconv.Itoa(i))
		b.WriteString(" = scalar, U08, 0, \"\", 1, 0\n")
	}
	def := parseOK(t, b.String())
	if len(def.Channels) != MaxChannels {
		t.Fatalf("channels = %d, want cap %d", len(def.Channels), MaxChannels)
	}
}

func TestParseYieldCalled(t *testing.T) {
	var b strings.Builder
	b.WriteString("ochBlockSize = 64\n[OutputChannels]\na = scalar, U08, 0, \"\", 1, 0\n")
	for i := 0; i < 300; i++ {
		b.WriteString("; filler comment line\n")
	}
	calls := 0
	parseOKWithYield(t, b.String(), func() { calls++ })
	if calls < 3 {
		t.Fatalf("yield calls = %d, want periodic invocation", calls)
	}
}

func parseOKWithYield(t *testing.T, text string, yield func()) *Definition {
	t.Helper()
	def, err := Parse(text, testCapacity, yield)
	if err != nil {
		t.Fatalf("Parse() err = %v", err)
	}
	return def
}
