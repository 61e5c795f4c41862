package transform

import (
	"testing"
	"time"

	"github.com/datapulse/ingest/models"
)

func rawBook(title, category, price string) models.RawBook {
	return models.RawBook{
		Title:            title,
		PriceText:        price,
		RatingToken:      "Three",
		AvailabilityText: "In stock (5 available)",
		Category:         category,
		Meta: models.RecordMeta{
			Source:    "books.toscrape.com",
			FetchedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			BatchID:   "pipeline_test",
		},
	}
}

func TestTransformBooks(t *testing.T) {
	raws := []models.RawBook{
		rawBook("A Light in the Attic", "Poetry", "£51.77"),
		rawBook("A Light in the Attic", "Poetry", "£51.77"), // duplicate
		rawBook("Tipping the Velvet", "Historical Fiction", "£53.74"),
		rawBook("Broken Price", "Poetry", "not-a-price"),
	}

	cleans, stats := TransformBooks(raws, 1.17)

	if len(cleans) != 2 {
		t.Fatalf("expected 2 clean books, got %d", len(cleans))
	}
	if stats.In != 4 || stats.Out != 2 || stats.Dropped != 2 {
		t.Errorf("stats = %+v, want In=4 Out=2 Dropped=2", stats)
	}
	if len(stats.Errors) != 1 {
		t.Errorf("expected 1 error for the bad price, got %d", len(stats.Errors))
	}

	first := cleans[0]
	if first.PriceGBP != 51.77 {
		t.Errorf("PriceGBP = %v, want 51.77", first.PriceGBP)
	}
	if first.PriceEUR != 60.57 {
		t.Errorf("PriceEUR = %v, want 60.57", first.PriceEUR)
	}
	if first.Rating != 3 {
		t.Errorf("Rating = %d, want 3", first.Rating)
	}
	if first.Availability != 5 {
		t.Errorf("Availability = %d, want 5", first.Availability)
	}
	if first.CategorySlug != "poetry" {
		t.Errorf("CategorySlug = %q, want poetry", first.CategorySlug)
	}
	if first.ContentKey == "" || first.ContentKey == cleans[1].ContentKey {
		t.Error("content keys must be set and distinct")
	}
	if first.BatchID != "pipeline_test" {
		t.Errorf("BatchID = %q, want pipeline_test", first.BatchID)
	}
}

func TestTransformBooksSameTitleDifferentCategory(t *testing.T) {
	raws := []models.RawBook{
		rawBook("Collected Works", "Poetry", "£10.00"),
		rawBook("Collected Works", "Philosophy", "£10.00"),
	}

	cleans, stats := TransformBooks(raws, 1.17)
	if len(cleans) != 2 || stats.Dropped != 0 {
		t.Fatalf("same title in different categories must both survive, got %d (dropped %d)",
			len(cleans), stats.Dropped)
	}
}
