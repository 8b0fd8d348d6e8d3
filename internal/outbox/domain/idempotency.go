package domain

import (
	"encoding/binary"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
)

const (
	// EpochOnce is the change epoch for writes that happen once per record (INSERT, DELETE).
	EpochOnce = "0"
	// EpochPending is the change epoch shared by every undelivered UPDATE of a record,
	// which makes consecutive updates merge into one pending entry.
	EpochPending = "pending"
)

// DefaultEpoch returns the change epoch used when the caller does not supply one.
func DefaultEpoch(op Operation) string {
	if op == OperationUpdate {
		return EpochPending
	}
	return EpochOnce
}

// BuildIdempotencyKey derives a stable key for one logical change.
// The key is "<table>:<operation>:<blake2b-256 hex>" over the length-prefixed tuple,
// so ("a:b", "c") and ("a", "b:c") never collide.
func BuildIdempotencyKey(sourceTable, recordID string, op Operation, epoch string) string {
	h, _ := blake2b.New256(nil)

	for _, part := range []string{sourceTable, recordID, string(op), epoch} {
		var size [8]byte
		binary.BigEndian.PutUint64(size[:], uint64(len(part)))
		_, _ = h.Write(size[:])
		_, _ = h.Write([]byte(part))
	}

	var b strings.Builder
	b.WriteString(sourceTable)
	b.WriteByte(':')
	b.WriteString(strings.ToLower(string(op)))
	b.WriteByte(':')
	b.WriteString(hex.EncodeToString(h.Sum(nil)))
	return b.String()
}
