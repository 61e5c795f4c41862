package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/datapulse/ingest/models"
)

// LoadStats counts one gold-layer load.
type LoadStats struct {
	Inserted   int
	Duplicates int
	Errors     []string
}

func (s *LoadStats) addError(format string, args ...any) {
	s.Errors = append(s.Errors, fmt.Sprintf(format, args...))
}

// Loader writes silver records into the dimensional gold schema. All
// writes are idempotent: dimensions key on slug, facts on their content or
// natural key, so loading the same batch twice changes nothing.
type Loader struct {
	db  *DB
	log *slog.Logger
}

// NewLoader builds a loader over an open database.
func NewLoader(database *DB, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{db: database, log: logger}
}

// connErr reports whether an error means the connection itself is gone, in
// which case continuing record by record is pointless.
func connErr(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// LoadBooks upserts categories then inserts book facts. A bad record is
// logged and skipped; a dead connection aborts.
func (l *Loader) LoadBooks(ctx context.Context, books []models.CleanBook) (LoadStats, error) {
	var stats LoadStats

	catIDs := make(map[string]int64)
	for _, b := range books {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if _, ok := catIDs[b.CategorySlug]; ok {
			continue
		}
		id, err := l.db.UpsertDimension(Categories, b.Category, b.CategorySlug)
		if err != nil {
			if connErr(err) {
				return stats, err
			}
			stats.addError("category %q: %v", b.Category, err)
			l.log.Error("category upsert failed", "category", b.Category, "error", err)
			continue
		}
		catIDs[b.CategorySlug] = id
	}

	for _, b := range books {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		catID, ok := catIDs[b.CategorySlug]
		if !ok {
			// dimension upsert failed above; the error is already recorded
			continue
		}
		inserted, err := l.db.InsertBook(catID, b)
		if err != nil {
			if connErr(err) {
				return stats, err
			}
			stats.addError("book %q: %v", b.Title, err)
			l.log.Error("book insert failed", "title", b.Title, "error", err)
			continue
		}
		if inserted {
			stats.Inserted++
		} else {
			stats.Duplicates++
		}
	}

	l.log.Info("books loaded", "inserted", stats.Inserted, "duplicates", stats.Duplicates)
	return stats, nil
}

// LoadQuotes upserts authors and tags, inserts quote facts, and links the
// quote-tag associations.
func (l *Loader) LoadQuotes(ctx context.Context, quotes []models.CleanQuote) (LoadStats, error) {
	var stats LoadStats

	for _, q := range quotes {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		authorID, err := l.db.UpsertDimension(Authors, q.Author, q.AuthorSlug)
		if err != nil {
			if connErr(err) {
				return stats, err
			}
			stats.addError("author %q: %v", q.Author, err)
			continue
		}

		quoteID, inserted, err := l.db.InsertQuote(authorID, q)
		if err != nil {
			if connErr(err) {
				return stats, err
			}
			stats.addError("quote %s: %v", q.TextHash[:8], err)
			l.log.Error("quote insert failed", "hash", q.TextHash[:8], "error", err)
			continue
		}
		if inserted {
			stats.Inserted++
		} else {
			stats.Duplicates++
		}

		for _, tag := range q.Tags {
			tagID, err := l.db.UpsertDimension(Tags, tag.Name, tag.Slug)
			if err != nil {
				stats.addError("tag %q: %v", tag.Name, err)
				continue
			}
			if err := l.db.LinkQuoteTag(quoteID, tagID); err != nil {
				stats.addError("quote %s tag %q: %v", q.TextHash[:8], tag.Name, err)
			}
		}
	}

	l.log.Info("quotes loaded", "inserted", stats.Inserted, "duplicates", stats.Duplicates)
	return stats, nil
}

// LoadPartners upserts the librairie dimension and its fact rows.
func (l *Loader) LoadPartners(ctx context.Context, partners []models.CleanPartner) (LoadStats, error) {
	var stats LoadStats

	for _, p := range partners {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		id, err := l.db.UpsertLibrairie(p)
		if err != nil {
			if connErr(err) {
				return stats, err
			}
			stats.addError("librairie %q: %v", p.Nom, err)
			l.log.Error("librairie upsert failed", "nom", p.Nom, "error", err)
			continue
		}

		inserted, err := l.db.InsertLibrairieFact(id, p)
		if err != nil {
			if connErr(err) {
				return stats, err
			}
			stats.addError("librairie fact %q: %v", p.Nom, err)
			continue
		}
		if inserted {
			stats.Inserted++
		} else {
			stats.Duplicates++
		}
	}

	l.log.Info("partners loaded", "inserted", stats.Inserted, "duplicates", stats.Duplicates)
	return stats, nil
}
