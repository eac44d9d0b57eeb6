package schema

import "fmt"

// FallbackFilename is tried when the signature-derived file is absent, so a
// single-tune setup can ship one renamed schema file.
const FallbackFilename = "DEFAULT.INI"

// djb2 hashes s with the XOR variant of djb2:
// h = 5381; h = ((h<<5)+h) ^ byte, over all bytes.
func djb2(s string) uint32 {
	h := uint32(5381)
	for i := 0; i < len(s); i++ {
		h = ((h << 5) + h) ^ uint32(s[i])
	}
	return h
}

// Filename derives the schema filename for an ECU signature string:
// eight uppercase hex digits of the signature hash plus ".INI". The scheme
// is deterministic so the same firmware always maps to the same file, and
// short enough for 8.3 filesystems.
func Filename(signature string) string {
	return fmt.Sprintf("%08X.INI", djb2(signature))
}
