package documents

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// CacheValidator derives the weak ETag for an iframe preview from the fields
// that change its output. Pure function, recomputed per request; no cache
// state is stored server-side beyond the optional rendered-HTML cache.
func CacheValidator(templateID string, updatedAt time.Time, degraded bool) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%t", templateID, updatedAt.UnixNano(), degraded)))
	return `W/"` + hex.EncodeToString(sum[:8]) + `"`
}
