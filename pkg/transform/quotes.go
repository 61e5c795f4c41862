package transform

import (
	"strings"

	"github.com/datapulse/ingest/models"
	"github.com/pemistahl/lingua-go"
)

// LanguageDetector tags a quote's language. Nil detectors are allowed;
// the language field is then left empty.
type LanguageDetector interface {
	Detect(text string) string
}

type linguaDetector struct {
	det lingua.LanguageDetector
}

// NewLinguaDetector builds a detector over the languages the source
// corpus actually contains.
func NewLinguaDetector() LanguageDetector {
	det := lingua.NewLanguageDetectorBuilder().
		FromLanguages(lingua.English, lingua.French, lingua.Spanish, lingua.German).
		Build()
	return &linguaDetector{det: det}
}

func (d *linguaDetector) Detect(text string) string {
	lang, ok := d.det.DetectLanguageOf(text)
	if !ok {
		return ""
	}
	return strings.ToLower(lang.IsoCode639_1().String())
}

// TransformQuotes normalizes raw quotes into CleanQuotes, deduplicating on
// the text digest. The surrounding curly quotes from the source markup are
// stripped before hashing so reruns stay stable.
func TransformQuotes(raws []models.RawQuote, detector LanguageDetector) ([]models.CleanQuote, Stats) {
	stats := Stats{In: len(raws)}
	seen := make(map[string]struct{}, len(raws))
	out := make([]models.CleanQuote, 0, len(raws))

	for _, raw := range raws {
		text := strings.Trim(strings.TrimSpace(raw.Text), "“”\"")
		if text == "" || raw.Author == "" {
			stats.Dropped++
			continue
		}

		hash := ContentHash(text)
		if _, dup := seen[hash]; dup {
			stats.Dropped++
			continue
		}
		seen[hash] = struct{}{}

		var language string
		if detector != nil {
			language = detector.Detect(text)
		}

		tags := make([]models.Tag, 0, len(raw.Tags))
		for _, t := range raw.Tags {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, models.Tag{
					Name: strings.ToLower(t),
					Slug: Slugify(t),
				})
			}
		}

		out = append(out, models.CleanQuote{
			Text:       text,
			TextHash:   hash,
			Author:     raw.Author,
			AuthorSlug: Slugify(raw.Author),
			Tags:       tags,
			Language:   language,
			ScrapedAt:  raw.Meta.FetchedAt,
			BatchID:    raw.Meta.BatchID,
		})
	}

	stats.Out = len(out)
	return out, stats
}
