package corpus

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewID generates a globally unique, time-sortable UUIDv7 (RFC 9562).
// Used for job IDs and other identities that are not content-derived.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NowUnix returns current time as Unix seconds.
func NowUnix() int64 {
	return time.Now().Unix()
}

// HashContent returns the hex SHA-256 of text. Used for source integrity
// hashes and chunk content hashes.
func HashContent(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// ChunkID derives a stable, content-addressed chunk identity. The same
// source, scale, position, and content always produce the same ID, which is
// what makes re-ingestion of an unchanged document idempotent.
func ChunkID(sourceID string, scale ScaleType, seq int, contentHash string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d|%s", sourceID, scale, seq, contentHash)))
	return "ck_" + hex.EncodeToString(sum[:])[:24]
}
