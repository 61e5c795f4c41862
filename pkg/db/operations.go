package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/datapulse/ingest/models"
)

// Dimension describes one dimension table. All dimensions share the shape
// (surrogate id, display name, UNIQUE slug) so the upsert and lookup code
// is written once.
type Dimension struct {
	Table   string
	IDCol   string
	NameCol string
	SlugCol string
}

var (
	Categories = Dimension{Table: "dim_categories", IDCol: "category_id", NameCol: "nom", SlugCol: "slug"}
	Authors    = Dimension{Table: "dim_authors", IDCol: "author_id", NameCol: "nom", SlugCol: "slug"}
	Tags       = Dimension{Table: "dim_tags", IDCol: "tag_id", NameCol: "nom", SlugCol: "slug"}
)

// UpsertDimension inserts a dimension member if its slug is new and returns
// the member's id either way.
func (db *DB) UpsertDimension(dim Dimension, name, slug string) (int64, error) {
	_, err := db.Exec(fmt.Sprintf(
		"INSERT OR IGNORE INTO %s (%s, %s) VALUES (?, ?)",
		dim.Table, dim.NameCol, dim.SlugCol), name, slug)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert into %s: %w", dim.Table, err)
	}

	var id int64
	err = db.QueryRow(fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = ?",
		dim.IDCol, dim.Table, dim.SlugCol), slug).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to look up %s slug %q: %w", dim.Table, slug, err)
	}
	return id, nil
}

// DimensionIDs returns the slug-to-id map for a dimension table.
func (db *DB) DimensionIDs(dim Dimension) (map[string]int64, error) {
	rows, err := db.Query(fmt.Sprintf("SELECT %s, %s FROM %s", dim.SlugCol, dim.IDCol, dim.Table))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dim.Table, err)
	}
	defer rows.Close()

	ids := make(map[string]int64)
	for rows.Next() {
		var slug string
		var id int64
		if err := rows.Scan(&slug, &id); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", dim.Table, err)
		}
		ids[slug] = id
	}
	return ids, rows.Err()
}

// InsertBook inserts a book fact. Returns false when the content key has
// already been loaded, so reruns of the same batch change nothing.
func (db *DB) InsertBook(categoryID int64, book models.CleanBook) (bool, error) {
	res, err := db.Exec(`
		INSERT OR IGNORE INTO fact_books
			(category_id, titre, prix_gbp, prix_eur, note, disponibilite,
			 url, image_url, content_key, scraped_at, batch_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, categoryID, book.Title, book.PriceGBP, book.PriceEUR, book.Rating,
		book.Availability, book.URL, book.ImageURL, book.ContentKey,
		book.ScrapedAt, book.BatchID)
	if err != nil {
		return false, fmt.Errorf("failed to insert book %q: %w", book.Title, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// InsertQuote inserts a quote fact, returning its id and whether the row is
// new. An already-loaded hash returns the existing id with inserted=false.
func (db *DB) InsertQuote(authorID int64, quote models.CleanQuote) (int64, bool, error) {
	res, err := db.Exec(`
		INSERT OR IGNORE INTO fact_quotes
			(author_id, texte, quote_hash, langue, scraped_at, batch_id)
		VALUES (?, ?, ?, ?, ?, ?)
	`, authorID, quote.Text, quote.TextHash, quote.Language, quote.ScrapedAt, quote.BatchID)
	if err != nil {
		return 0, false, fmt.Errorf("failed to insert quote: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n > 0 {
		id, err := res.LastInsertId()
		if err != nil {
			return 0, false, fmt.Errorf("failed to get quote id: %w", err)
		}
		return id, true, nil
	}

	var id int64
	err = db.QueryRow("SELECT quote_id FROM fact_quotes WHERE quote_hash = ?", quote.TextHash).Scan(&id)
	if err != nil {
		return 0, false, fmt.Errorf("failed to look up quote hash: %w", err)
	}
	return id, false, nil
}

// LinkQuoteTag attaches a tag to a quote. Safe to repeat.
func (db *DB) LinkQuoteTag(quoteID, tagID int64) error {
	_, err := db.Exec(
		"INSERT OR IGNORE INTO quote_tags (quote_id, tag_id) VALUES (?, ?)",
		quoteID, tagID)
	if err != nil {
		return fmt.Errorf("failed to link quote %d to tag %d: %w", quoteID, tagID, err)
	}
	return nil
}

// UpsertLibrairie inserts a partner dimension member keyed on its slug and
// returns its id.
func (db *DB) UpsertLibrairie(p models.CleanPartner) (int64, error) {
	_, err := db.Exec(
		"INSERT OR IGNORE INTO dim_librairies (nom, slug, ville) VALUES (?, ?, ?)",
		p.Nom, p.Slug, p.Ville)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert librairie %q: %w", p.Nom, err)
	}

	var id int64
	err = db.QueryRow("SELECT librairie_id FROM dim_librairies WHERE slug = ?", p.Slug).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to look up librairie slug %q: %w", p.Slug, err)
	}
	return id, nil
}

// InsertLibrairieFact inserts the fact row for a partner. Each librairie
// carries at most one fact row; reruns are no-ops.
func (db *DB) InsertLibrairieFact(librairieID int64, p models.CleanPartner) (bool, error) {
	res, err := db.Exec(`
		INSERT OR IGNORE INTO fact_librairies
			(librairie_id, adresse, code_postal, specialite, date_partenariat,
			 ca_annuel_range, contact_hash, latitude, longitude, batch_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, librairieID, p.Adresse, p.CodePostal, p.Specialite, p.DatePartenariat,
		p.RevenueRange, p.ContactHash, p.Latitude, p.Longitude, p.BatchID)
	if err != nil {
		return false, fmt.Errorf("failed to insert librairie fact %q: %w", p.Nom, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// RecordRunStart writes the pipeline_runs row for a fresh batch.
func (db *DB) RecordRunStart(batchID string, startedAt time.Time) error {
	_, err := db.Exec(
		"INSERT INTO pipeline_runs (batch_id, started_at, status) VALUES (?, ?, 'running')",
		batchID, startedAt)
	if err != nil {
		return fmt.Errorf("failed to record run start: %w", err)
	}
	return nil
}

// RecordRunEnd closes out the pipeline_runs row.
func (db *DB) RecordRunEnd(batchID, status, report string, errorCount int, finishedAt time.Time) error {
	res, err := db.Exec(`
		UPDATE pipeline_runs
		SET finished_at = ?, status = ?, error_count = ?, report = ?
		WHERE batch_id = ?
	`, finishedAt, status, errorCount, report, batchID)
	if err != nil {
		return fmt.Errorf("failed to record run end: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("no run found for batch %s", batchID)
	}
	return nil
}

// LastRun returns the most recent pipeline run, or sql.ErrNoRows.
func (db *DB) LastRun() (batchID, status string, err error) {
	err = db.QueryRow(
		"SELECT batch_id, status FROM pipeline_runs ORDER BY started_at DESC LIMIT 1",
	).Scan(&batchID, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", err
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to read last run: %w", err)
	}
	return batchID, status, nil
}
