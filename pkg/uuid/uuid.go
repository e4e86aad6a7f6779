// Package uuid provides UUID v7 generation.
// UUID v7 sorts by creation time, which keeps SQLite primary-key b-trees
// append-mostly (v4 keys scatter inserts across the index).
package uuid

import (
	"crypto/rand"
	"fmt"
	"time"
)

// UUID represents a UUID v7 identifier.
type UUID [16]byte

// NewV7 generates a new UUID v7 per draft-ietf-uuidrev-rfc4122bis:
// 48 bits of Unix millisecond timestamp, then version/variant bits,
// the rest random.
func NewV7() UUID {
	now := time.Now().UnixMilli()

	var u UUID

	// Timestamp occupies bytes 0-5, big-endian.
	u[0] = byte(now >> 40)
	u[1] = byte(now >> 32)
	u[2] = byte(now >> 24)
	u[3] = byte(now >> 16)
	u[4] = byte(now >> 8)
	u[5] = byte(now)

	// Bytes 6-15 are random; version and variant bits are forced below.
	if _, err := rand.Read(u[6:]); err != nil {
		// crypto/rand only fails when the OS entropy source is unavailable.
		panic(fmt.Sprintf("uuid: rand.Read: %v", err))
	}

	u[6] = 0x70 | (u[6] & 0x0f) // version 7
	u[7] = 0x80 | (u[7] & 0x3f) // RFC 4122 variant

	return u
}

// String returns the UUID in standard form: xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx
func (u UUID) String() string {
	return fmt.Sprintf("%08x-%04x-%04x-%04x-%012x",
		u[0:4],
		u[4:6],
		u[6:8],
		u[8:10],
		u[10:16],
	)
}
