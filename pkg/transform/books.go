package transform

import (
	"fmt"

	"github.com/datapulse/ingest/models"
)

// TransformBooks normalizes raw catalog items into CleanBooks. Items with
// an unparseable price are dropped; duplicates (same title within the same
// category) keep the first occurrence.
func TransformBooks(raws []models.RawBook, gbpToEUR float64) ([]models.CleanBook, Stats) {
	stats := Stats{In: len(raws)}
	seen := make(map[string]struct{}, len(raws))
	out := make([]models.CleanBook, 0, len(raws))

	for _, raw := range raws {
		key := ContentHash(raw.Title + "|" + raw.Category)
		if _, dup := seen[key]; dup {
			stats.Dropped++
			continue
		}

		price, err := ParsePrice(raw.PriceText)
		if err != nil {
			stats.Dropped++
			stats.Errors = append(stats.Errors,
				fmt.Sprintf("book %q: bad price %q", raw.Title, raw.PriceText))
			continue
		}

		seen[key] = struct{}{}
		out = append(out, models.CleanBook{
			Title:        raw.Title,
			Category:     raw.Category,
			CategorySlug: Slugify(raw.Category),
			PriceGBP:     price,
			PriceEUR:     ConvertPrice(price, gbpToEUR),
			Rating:       ParseRating(raw.RatingToken),
			Availability: ParseAvailability(raw.AvailabilityText),
			URL:          raw.URL,
			ImageURL:     raw.ImageURL,
			ContentKey:   key,
			ScrapedAt:    raw.Meta.FetchedAt,
			BatchID:      raw.Meta.BatchID,
		})
	}

	stats.Out = len(out)
	return out, stats
}
