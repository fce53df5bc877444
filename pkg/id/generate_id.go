package id

import (
	"strings"

	"github.com/google/uuid"
)

// NewID32 returns a random v4 UUID rendered as exactly 32 lowercase hex
// characters (no separators/prefixes).
func NewID32() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewReceipt builds the merchant receipt sent with a gateway order. Gateways
// cap receipts at 40 chars, so the prefix is trimmed when needed.
func NewReceipt(prefix string) string {
	suffix := NewID32()[:16]
	if len(prefix) > 23 {
		prefix = prefix[:23]
	}
	if prefix == "" {
		return "rcpt_" + suffix
	}
	return prefix + "_" + suffix
}
