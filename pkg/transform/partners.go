package transform

import (
	"strings"

	"github.com/datapulse/ingest/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var cityCaser = cases.Title(language.French)

// TransformPartners finalizes imported partner records: trims and
// title-cases the city, fills the slug, and deduplicates on it. Records
// arrive already pseudonymized from the import layer.
func TransformPartners(partners []models.CleanPartner) ([]models.CleanPartner, Stats) {
	stats := Stats{In: len(partners)}
	seen := make(map[string]struct{}, len(partners))
	out := make([]models.CleanPartner, 0, len(partners))

	for _, p := range partners {
		p.Nom = strings.TrimSpace(p.Nom)
		p.Adresse = strings.TrimSpace(p.Adresse)
		p.Ville = cityCaser.String(strings.ToLower(strings.TrimSpace(p.Ville)))
		p.Slug = Slugify(p.Nom)

		if _, dup := seen[p.Slug]; dup {
			stats.Dropped++
			continue
		}
		seen[p.Slug] = struct{}{}
		out = append(out, p)
	}

	stats.Out = len(out)
	return out, stats
}
