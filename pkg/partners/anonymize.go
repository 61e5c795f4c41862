package partners

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Pseudonymize hashes the non-empty personal fields into an irreversible
// digest. The original values never leave the bronze layer. Returns ""
// when every field is empty so the caller can tell "no contact" apart
// from a real digest.
func Pseudonymize(values []string, salt string) string {
	var parts []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) == 0 {
		return ""
	}

	sum := sha256.Sum256([]byte(salt + ":" + strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// revenueUnknown labels a missing annual revenue figure.
const revenueUnknown = "Non renseigné"

// BucketRevenue maps an annual revenue figure to its reporting range.
// The exact amount is dropped at the silver layer.
func BucketRevenue(ca *float64) string {
	if ca == nil {
		return revenueUnknown
	}
	switch v := *ca; {
	case v < 100_000:
		return "< 100k€"
	case v < 250_000:
		return "100k€ - 250k€"
	case v < 500_000:
		return "250k€ - 500k€"
	case v < 1_000_000:
		return "500k€ - 1M€"
	default:
		return "> 1M€"
	}
}
