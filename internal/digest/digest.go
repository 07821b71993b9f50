// Package digest derives stable identifiers from content and ids.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"strings"
)

// Checksum is the hex sha256 of content. Posts sharing a checksum share an
// original post.
func Checksum(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}

// ArtHash identifies the cover art of an album built from the given posts.
// Order matters. No posts yields "".
func ArtHash(postIDs ...string) string {
	if len(postIDs) == 0 {
		return ""
	}
	h := sha256.Sum256([]byte(strings.Join(postIDs, "#")))
	return hex.EncodeToString(h[:16]) // 128-bit hash as hex
}

// Shard assigns key to one of n buckets. With n <= 1 every key lands in 0.
func Shard(key string, n int) int {
	if n <= 1 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}

// CardID builds the deterministic id of a per-user card.
func CardID(userID, cardType string, subject ...string) string {
	parts := append([]string{userID, cardType}, subject...)
	return strings.Join(parts, ":")
}

// EventID derives an id for a change event that carries none.
func EventID(pk, sk, oldVersion, newVersion string) string {
	data := fmt.Sprintf("%s#%s#%s#%s", pk, sk, oldVersion, newVersion)
	h := sha256.Sum256([]byte(data))
	return hex.EncodeToString(h[:16])
}
