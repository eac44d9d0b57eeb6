package schema

import (
	"strings"
	"testing"
)

func TestFilenameKnownVectors(t *testing.T) {
	// djb2 of the empty string is the initial register, 5381.
	if got := Filename(""); got != "00001505.INI" {
		t.Errorf("Filename(\"\") = %q, want 00001505.INI", got)
	}
	// 5381*33 ^ 'A' = 177573 ^ 65 = 0x2B5E4
	if got := Filename("A"); got != "0002B5E4.INI" {
		t.Errorf("Filename(\"A\") = %q, want 0002B5E4.INI", got)
	}
}

func TestFilenameShape(t *testing.T) {
	got := Filename("rusEFI 2024.08.uaefi")
	if len(got) != 12 || !strings.HasSuffix(got, ".INI") {
		t.Fatalf("Filename() = %q, want 8 hex digits + .INI", got)
	}
	if got != strings.ToUpper(got) {
		t.Fatalf("Filename() = %q, want uppercase hex", got)
	}
}

func TestFilenameDeterministic(t *testing.T) {
	a := Filename("rusEFI v1")
	b := Filename("rusEFI v1")
	c := Filename("rusEFI v2")
	if a != b {
		t.Fatalf("same signature hashed differently: %q vs %q", a, b)
	}
	if a == c {
		t.Fatalf("different signatures collided: %q", a)
	}
}
