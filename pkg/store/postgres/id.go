package postgres

import (
	"crypto/rand"
	"fmt"
	"time"
)

func randomJobID(now time.Time) string {
	return fmt.Sprintf("job-%s-%s", now.UTC().Format("20060102"), randomHex(8))
}

func randomHex(n int) string {
	const alphabet = "0123456789abcdef"
	buf := make([]byte, n)
	_, _ = rand.Read(buf)
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(out)
}

// DeriveDocumentID derives a stable document id from a content hash,
// matching the memstore adapter.
func DeriveDocumentID(contentHash string) string {
	if len(contentHash) >= 16 {
		return contentHash[:16]
	}
	return contentHash
}
