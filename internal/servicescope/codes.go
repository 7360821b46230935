// ABOUTME: Service code normalization and deterministic folder roots
// ABOUTME: Maps free-form service hints onto a small closed code set

package servicescope

import (
	"fmt"
	"strings"
)

// Known service codes
const (
	CodeLandSurveying     = "land_surveying"
	CodePropertyValuation = "property_valuation"
	CodeLegalConveyancing = "legal_conveyancing"
	CodeHomeInspection    = "home_inspection"
	CodePropertyCleaning  = "property_cleaning"
	CodeRelocationMoving  = "relocation_moving"
)

// codeKeywords maps hint keywords to service codes. First match wins, so
// more specific keywords come first.
var codeKeywords = []struct {
	keyword string
	code    string
}{
	{"survey", CodeLandSurveying},
	{"valuation", CodePropertyValuation},
	{"apprais", CodePropertyValuation},
	{"convey", CodeLegalConveyancing},
	{"legal", CodeLegalConveyancing},
	{"inspect", CodeHomeInspection},
	{"clean", CodePropertyCleaning},
	{"moving", CodeRelocationMoving},
	{"relocat", CodeRelocationMoving},
}

// NormalizeServiceCode maps a free-form service hint onto a service code.
// Known keywords resolve to the closed code set; anything else is slugified
// into a generic code so unrecognized services still get stable bookkeeping.
// An empty hint is not a valid service.
func NormalizeServiceCode(hint string) (string, error) {
	hint = strings.TrimSpace(strings.ToLower(hint))
	if hint == "" {
		return "", fmt.Errorf("service hint required")
	}

	for _, kw := range codeKeywords {
		if strings.Contains(hint, kw.keyword) {
			return kw.code, nil
		}
	}
	return slugify(hint), nil
}

// slugify collapses a free-form hint into a snake_case code.
func slugify(s string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.Trim(b.String(), "_")
}

// DisplayName renders a service code as a human-readable catalog name.
func DisplayName(code string) string {
	words := strings.Split(code, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// FolderRoot computes the deterministic storage folder for a service
// engagement. Same inputs always produce the same path, which is what makes
// re-sync idempotent.
func FolderRoot(code, requesterID, conversationID string) string {
	return fmt.Sprintf("services/%s/%s/%s", code, requesterID, conversationID)
}
