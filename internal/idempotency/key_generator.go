package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DeliveryKey builds a deterministic key for one webhook delivery.
func DeliveryKey(updateID int, userID int64) string {
	return generate("update", updateID, userID)
}

func generate(parts ...interface{}) string {
	h := sha256.New()
	for _, part := range parts {
		fmt.Fprintf(h, "%v:", part)
	}

	return hex.EncodeToString(h.Sum(nil))
}
