package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RecordMeta travels with every bronze record. Bronze records are immutable
// once written.
type RecordMeta struct {
	Source    string    `json:"source"`
	FetchedAt time.Time `json:"fetched_at"`
	BatchID   string    `json:"batch_id"`
}

// RawBook is one scraped catalog item, fields kept as found on the page.
type RawBook struct {
	Title            string     `json:"title"`
	PriceText        string     `json:"price"`
	RatingToken      string     `json:"rating"`
	AvailabilityText string     `json:"availability"`
	Category         string     `json:"category"`
	URL              string     `json:"url"`
	ImageURL         string     `json:"image_url"`
	Meta             RecordMeta `json:"_metadata"`
}

// RawQuote is one scraped quote block.
type RawQuote struct {
	Text   string     `json:"text"`
	Author string     `json:"author"`
	Tags   []string   `json:"tags"`
	Meta   RecordMeta `json:"_metadata"`
}

// RawPartner is one spreadsheet row before anonymization. It may carry raw
// personal fields and must never leave the bronze layer.
type RawPartner struct {
	NomLibrairie     string     `json:"nom_librairie"`
	Adresse          string     `json:"adresse"`
	CodePostal       string     `json:"code_postal"`
	Ville            string     `json:"ville"`
	ContactNom       string     `json:"contact_nom,omitempty"`
	ContactEmail     string     `json:"contact_email,omitempty"`
	ContactTelephone string     `json:"contact_telephone,omitempty"`
	CAAnnuel         *float64   `json:"ca_annuel,omitempty"`
	DatePartenariat  string     `json:"date_partenariat,omitempty"`
	Specialite       string     `json:"specialite,omitempty"`
	RowNumber        int        `json:"row_number"`
	Meta             RecordMeta `json:"_metadata"`
}

// CleanBook is a validated, normalized book (silver).
type CleanBook struct {
	Title        string    `json:"title"`
	Category     string    `json:"category"`
	CategorySlug string    `json:"category_slug"`
	PriceGBP     float64   `json:"price_gbp"`
	PriceEUR     float64   `json:"price_eur"`
	Rating       int       `json:"rating"`
	Availability int       `json:"availability"`
	URL          string    `json:"url"`
	ImageURL     string    `json:"image_url"`
	ContentKey   string    `json:"content_key"`
	ScrapedAt    time.Time `json:"scraped_at"`
	BatchID      string    `json:"batch_id"`
}

// Tag is a quote tag with both its display form and the slug used as the
// dimension natural key.
type Tag struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// CleanQuote is a validated, deduplicated quote (silver).
type CleanQuote struct {
	Text       string    `json:"text"`
	TextHash   string    `json:"text_hash"`
	Author     string    `json:"author"`
	AuthorSlug string    `json:"author_slug"`
	Tags       []Tag     `json:"tags"`
	Language   string    `json:"language,omitempty"`
	ScrapedAt  time.Time `json:"scraped_at"`
	BatchID    string    `json:"batch_id"`
}

// CleanPartner is a validated, pseudonymized partner record (silver). By
// construction it cannot carry raw personal identifiers: contact fields are
// reduced to ContactHash and the revenue figure to a bucket label.
type CleanPartner struct {
	Nom             string    `json:"nom"`
	Slug            string    `json:"slug"`
	Adresse         string    `json:"adresse"`
	CodePostal      string    `json:"code_postal"`
	Ville           string    `json:"ville"`
	Specialite      string    `json:"specialite,omitempty"`
	DatePartenariat string    `json:"date_partenariat,omitempty"`
	RevenueRange    string    `json:"ca_annuel_range"`
	ContactHash     string    `json:"contact_hash,omitempty"`
	Latitude        *float64  `json:"latitude,omitempty"`
	Longitude       *float64  `json:"longitude,omitempty"`
	ImportedAt      time.Time `json:"imported_at"`
	BatchID         string    `json:"batch_id"`
}

// GeocodeResult is one positive answer from the address API. The cache also
// stores explicit negative entries; those are represented outside this type.
type GeocodeResult struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Label     string    `json:"label"`
	Score     float64   `json:"score"`
	City      string    `json:"city"`
	Postcode  string    `json:"postcode"`
	QueriedAt time.Time `json:"queried_at"`
}

// DomainStats counts records through the three phases for one domain.
type DomainStats struct {
	Extracted   int `json:"extracted"`
	Transformed int `json:"transformed"`
	Loaded      int `json:"loaded"`
}

// BatchMetadata is created once at orchestrator start, mutated through the
// run, and reported at the end. Batch IDs are never reused across runs.
type BatchMetadata struct {
	BatchID   string                  `json:"batch_id"`
	StartTime time.Time               `json:"start_time"`
	EndTime   time.Time               `json:"end_time"`
	Domains   map[string]*DomainStats `json:"domains"`
	Errors    []string                `json:"errors"`
}

// NewBatchMetadata mints a fresh batch: timestamp plus a random suffix.
func NewBatchMetadata() *BatchMetadata {
	id := fmt.Sprintf("pipeline_%s_%s",
		time.Now().UTC().Format("20060102_150405"),
		uuid.NewString()[:8])
	return &BatchMetadata{
		BatchID:   id,
		StartTime: time.Now().UTC(),
		Domains:   make(map[string]*DomainStats),
	}
}

// Stats returns the per-domain counters, creating them on first use.
func (b *BatchMetadata) Stats(domain string) *DomainStats {
	s, ok := b.Domains[domain]
	if !ok {
		s = &DomainStats{}
		b.Domains[domain] = s
	}
	return s
}

// AddError appends a run-level error message.
func (b *BatchMetadata) AddError(format string, args ...any) {
	b.Errors = append(b.Errors, fmt.Sprintf(format, args...))
}
