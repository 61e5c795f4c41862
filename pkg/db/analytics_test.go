package db

import (
	"context"
	"testing"
	"time"

	"github.com/datapulse/ingest/models"
)

// seedAnalytics loads a small but uneven dataset: three poetry books,
// one travel book, quotes from two authors, and two partner librairies
// of which only one geocoded.
func seedAnalytics(t *testing.T, db *DB) {
	t.Helper()
	loader := NewLoader(db, nil)
	ctx := context.Background()

	specs := []struct {
		title    string
		category string
		price    float64
		rating   int
		stock    int
	}{
		{"Ode to the West Wind", "poetry", 30, 5, 3},
		{"Leaves of Grass", "poetry", 20, 4, 2},
		{"The Waste Land", "poetry", 10, 3, 1},
		{"A Walk in the Woods", "travel", 25, 4, 6},
	}
	books := make([]models.CleanBook, 0, len(specs))
	for _, s := range specs {
		book := cleanBook(s.title, s.category)
		book.PriceEUR = s.price
		book.Rating = s.rating
		book.Availability = s.stock
		books = append(books, book)
	}
	if _, err := loader.LoadBooks(ctx, books); err != nil {
		t.Fatalf("seed books: %v", err)
	}

	quotes := []models.CleanQuote{
		cleanQuote("q1", "albert-einstein", "change"),
		cleanQuote("q2", "albert-einstein"),
		cleanQuote("q3", "jane-austen"),
	}
	quotes[2].Language = ""
	if _, err := loader.LoadQuotes(ctx, quotes); err != nil {
		t.Fatalf("seed quotes: %v", err)
	}

	lat, lon := 48.86, 2.37
	partners := []models.CleanPartner{
		{
			Nom: "Librairie du Canal", Slug: "librairie-du-canal",
			Ville: "Paris", RevenueRange: "100k€ - 250k€",
			Latitude: &lat, Longitude: &lon,
			ImportedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			BatchID:    "batch-test",
		},
		{
			Nom: "Pages et Plumes", Slug: "pages-et-plumes",
			Ville: "Lyon", RevenueRange: "Non renseigné",
			ImportedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			BatchID:    "batch-test",
		},
	}
	if _, err := loader.LoadPartners(ctx, partners); err != nil {
		t.Fatalf("seed partners: %v", err)
	}
}

func TestCategoryStats(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	seedAnalytics(t, db)

	stats, err := db.CategoryStats()
	if err != nil {
		t.Fatalf("CategoryStats() error = %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("got %d categories, want 2", len(stats))
	}

	poetry := stats[0]
	if poetry.Category != "poetry" {
		t.Fatalf("largest category = %q, want poetry first", poetry.Category)
	}
	if poetry.Books != 3 {
		t.Errorf("poetry books = %d, want 3", poetry.Books)
	}
	if poetry.AvgPrice != 20 {
		t.Errorf("poetry avg price = %v, want 20", poetry.AvgPrice)
	}
	if poetry.AvgRating != 4 {
		t.Errorf("poetry avg rating = %v, want 4", poetry.AvgRating)
	}
	if poetry.TotalStock != 6 {
		t.Errorf("poetry stock = %d, want 6", poetry.TotalStock)
	}
}

func TestTopAuthors(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	seedAnalytics(t, db)

	authors, err := db.TopAuthors(1)
	if err != nil {
		t.Fatalf("TopAuthors() error = %v", err)
	}
	if len(authors) != 1 {
		t.Fatalf("got %d authors, want 1 (limit)", len(authors))
	}
	if authors[0].Author != "albert-einstein" || authors[0].Quotes != 2 {
		t.Errorf("top author = %+v, want albert-einstein with 2 quotes", authors[0])
	}
}

func TestPriceRanks(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	seedAnalytics(t, db)

	ranks, err := db.PriceRanks(2)
	if err != nil {
		t.Fatalf("PriceRanks() error = %v", err)
	}
	// Two per category, but travel only has one book.
	if len(ranks) != 3 {
		t.Fatalf("got %d ranked rows, want 3", len(ranks))
	}

	top := ranks[0]
	if top.Category != "poetry" || top.Title != "Ode to the West Wind" || top.Rank != 1 {
		t.Errorf("first rank = %+v, want poetry #1 Ode to the West Wind", top)
	}
	if ranks[1].Rank != 2 {
		t.Errorf("second poetry rank = %d, want 2", ranks[1].Rank)
	}
	for _, r := range ranks {
		if r.Rank > 2 {
			t.Errorf("rank %d for %q exceeds requested top 2", r.Rank, r.Title)
		}
	}
}

func TestGeolocatedLibrairies(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	seedAnalytics(t, db)

	libs, err := db.GeolocatedLibrairies()
	if err != nil {
		t.Fatalf("GeolocatedLibrairies() error = %v", err)
	}
	if len(libs) != 1 {
		t.Fatalf("got %d geolocated librairies, want 1", len(libs))
	}
	if libs[0].Nom != "Librairie du Canal" || libs[0].Latitude != 48.86 {
		t.Errorf("geolocated librairie = %+v", libs[0])
	}
}

func TestQualityReport(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	seedAnalytics(t, db)

	report, err := db.QualityReport()
	if err != nil {
		t.Fatalf("QualityReport() error = %v", err)
	}

	byName := make(map[string]QualityCheck, len(report))
	for _, c := range report {
		byName[c.Check] = c
	}

	if c := byName["quotes without language"]; c.Count != 1 || c.OK {
		t.Errorf("quotes without language = %+v, want count 1 flagged", c)
	}
	if c := byName["librairies without coordinates"]; c.Count != 1 || !c.OK {
		t.Errorf("librairies without coordinates = %+v, want count 1 tolerated", c)
	}
	if c := byName["books without category"]; c.Count != 0 || !c.OK {
		t.Errorf("books without category = %+v, want clean", c)
	}
}

func TestGlobalDashboard(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	seedAnalytics(t, db)

	d, err := db.GlobalDashboard()
	if err != nil {
		t.Fatalf("GlobalDashboard() error = %v", err)
	}
	want := Dashboard{Books: 4, Quotes: 3, Librairies: 2, Categories: 2, Authors: 2}
	if d != want {
		t.Errorf("GlobalDashboard() = %+v, want %+v", d, want)
	}
}
