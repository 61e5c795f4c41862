// Package transform turns bronze records into silver records: parsing,
// normalization, enrichment and dedupe. Transformations are pure; dropped
// records are counted, never silently discarded.
package transform

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Stats counts one transformation pass.
type Stats struct {
	In      int
	Out     int
	Dropped int
	Errors  []string
}

var (
	slugStrip    = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugSpaces   = regexp.MustCompile(`[\s-]+`)
	availableRe  = regexp.MustCompile(`\((\d+)\s+available\)`)
	priceCleanRe = regexp.MustCompile(`[^0-9.]`)
)

// Slugify lowercases, strips punctuation and joins words with hyphens.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = slugStrip.ReplaceAllString(s, "")
	s = slugSpaces.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// ContentHash digests text after trimming and lowercasing, so that records
// differing only in whitespace or case collapse to the same key.
func ContentHash(s string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(s))))
	return hex.EncodeToString(sum[:])
}

// ParsePrice extracts the numeric amount from a scraped price string.
// Handles the mojibake currency prefix ("Â£51.77") the source pages emit.
func ParsePrice(s string) (float64, error) {
	cleaned := priceCleanRe.ReplaceAllString(s, "")
	return strconv.ParseFloat(cleaned, 64)
}

// ConvertPrice applies a fixed exchange rate, rounded to cents.
func ConvertPrice(amount, rate float64) float64 {
	return math.Round(amount*rate*100) / 100
}

var ratingWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
}

// ParseRating maps the star-rating CSS token to 1..5, 0 when unknown.
func ParseRating(token string) int {
	return ratingWords[strings.ToLower(strings.TrimSpace(token))]
}

// ParseAvailability extracts the stock count from the availability text.
// "In stock (19 available)" → 19; a bare "In stock" counts as 1.
func ParseAvailability(s string) int {
	s = strings.TrimSpace(s)
	if m := availableRe.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	if strings.Contains(strings.ToLower(s), "in stock") {
		return 1
	}
	return 0
}
