// ABOUTME: Canonical user id normalization
// ABOUTME: Maps informal caller-supplied identifiers onto a stable UUID key space

package identity

import (
	"strings"

	"github.com/google/uuid"
)

// userNamespace is the fixed namespace for deriving canonical ids from
// informal identifiers. Changing it would re-key every derived identity.
var userNamespace = uuid.MustParse("7f9c24e5-2f31-4af2-8d7e-9b1a6c03d5b1")

// NormalizeUserID maps a possibly informal identifier onto the canonical id
// space. Canonical ids (UUIDs) pass through unchanged, so the function is
// idempotent. Anything else derives deterministically from the trimmed input,
// falling back to seed when the input is empty, and to a fresh random id when
// both are empty: the same informal identity always converges on the same
// canonical id across processes and restarts.
func NormalizeUserID(raw, seed string) string {
	raw = strings.TrimSpace(raw)
	if _, err := uuid.Parse(raw); err == nil {
		return raw
	}

	if raw == "" {
		raw = strings.TrimSpace(seed)
	}
	if raw == "" {
		return uuid.New().String()
	}

	return uuid.NewSHA1(userNamespace, []byte(raw)).String()
}
