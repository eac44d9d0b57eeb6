package protocol

import (
	"fmt"
	"hash/crc32"
)

// crcCheckValue is the CRC-32/ISO-HDLC check value for the ASCII string
// "123456789". Every conforming implementation must produce it.
const crcCheckValue = 0xCBF43926

// Checksum computes the CRC-32/ISO-HDLC of p: polynomial 0xEDB88320 applied
// LSB-first, register initialized to all-ones, final value complemented.
// This is the same variant the ECU firmware computes over framed commands.
func Checksum(p []byte) uint32 {
	return crc32.ChecksumIEEE(p)
}

// SelfTest verifies the checksum implementation against the canonical check
// value. The protocol engine must not be trusted until this passes; callers
// run it once at startup and treat failure as an unrecoverable fault.
func SelfTest() error {
	if got := Checksum([]byte("123456789")); got != crcCheckValue {
		return fmt.Errorf("protocol: crc32 self-test failed: got 0x%08X, want 0x%08X", got, crcCheckValue)
	}
	return nil
}
