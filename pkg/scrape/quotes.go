package scrape

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/datapulse/ingest/models"
	"github.com/datapulse/ingest/pkg/fetcher"
)

const quotesSource = "quotes.toscrape.com"

// QuoteScraper extracts quote blocks from the paginated quote listing.
type QuoteScraper struct {
	fetcher  *fetcher.Fetcher
	baseURL  string
	maxPages int
	batchID  string
	log      *slog.Logger
}

// NewQuoteScraper builds a scraper. maxPages <= 0 falls back to the
// defensive page cap.
func NewQuoteScraper(f *fetcher.Fetcher, baseURL string, maxPages int, batchID string, logger *slog.Logger) *QuoteScraper {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuoteScraper{
		fetcher:  f,
		baseURL:  baseURL,
		maxPages: maxPages,
		batchID:  batchID,
		log:      logger,
	}
}

// Iterate starts a fresh extraction from the seed URL. Iterators are not
// restartable; call Iterate again to re-fetch.
func (s *QuoteScraper) Iterate() *QuoteIterator {
	return &QuoteIterator{
		scraper: s,
		current: s.baseURL,
		budget:  pageBudget(s.maxPages),
		visited: make(map[string]bool),
	}
}

// QuoteIterator walks listing pages one at a time:
// FETCH -> PARSE -> {FOLLOW_NEXT | TERMINATE}.
type QuoteIterator struct {
	scraper *QuoteScraper
	current string
	budget  int
	visited map[string]bool
	buf     []models.RawQuote
	done    bool
	stats   Stats
}

// Next yields the next raw quote, fetching further pages as needed. It
// returns false once the listing is exhausted or terminated.
func (it *QuoteIterator) Next(ctx context.Context) (models.RawQuote, bool) {
	for len(it.buf) == 0 && !it.done {
		it.fetchPage(ctx)
	}
	if len(it.buf) == 0 {
		return models.RawQuote{}, false
	}
	q := it.buf[0]
	it.buf = it.buf[1:]
	return q, true
}

// Stats reports the counters accumulated so far.
func (it *QuoteIterator) Stats() Stats {
	return it.stats
}

// fetchPage advances the state machine by one page, buffering any items it
// parses and terminating the iterator when the listing ends.
func (it *QuoteIterator) fetchPage(ctx context.Context) {
	if it.current == "" || it.stats.Pages >= it.budget || it.visited[it.current] || ctx.Err() != nil {
		it.done = true
		return
	}
	it.visited[it.current] = true

	s := it.scraper
	s.log.Info("scraping page", "url", it.current)

	doc, err := s.fetcher.GetDocument(ctx, it.current)
	if err != nil {
		if !errors.Is(err, fetcher.ErrNotFound) {
			it.stats.addError("page fetch failed: %s: %v", it.current, err)
		}
		s.log.Warn("terminating listing", "url", it.current, "error", err)
		it.done = true
		return
	}
	it.stats.Pages++

	fetchedAt := time.Now().UTC()
	blocks := doc.Find("div.quote")
	if blocks.Length() == 0 {
		s.log.Warn("no quotes found", "url", it.current)
		it.done = true
		return
	}

	blocks.Each(func(_ int, sel *goquery.Selection) {
		q, err := parseQuote(sel)
		if err != nil {
			it.stats.Skipped++
			s.log.Warn("quote parse failed", "url", it.current, "error", err)
			return
		}
		q.Meta = models.RecordMeta{
			Source:    quotesSource,
			FetchedAt: fetchedAt,
			BatchID:   s.batchID,
		}
		it.buf = append(it.buf, q)
		it.stats.Items++
	})

	next, ok := nextPageURL(doc, it.current)
	if !ok {
		it.current = ""
		it.done = true
		return
	}
	it.current = next
}

func parseQuote(sel *goquery.Selection) (models.RawQuote, error) {
	text := strings.TrimSpace(sel.Find(".text").First().Text())
	author := strings.TrimSpace(sel.Find(".author").First().Text())
	if text == "" || author == "" {
		return models.RawQuote{}, errors.New("quote block missing text or author")
	}

	var tags []string
	sel.Find(".tag").Each(func(_ int, t *goquery.Selection) {
		if tag := strings.TrimSpace(t.Text()); tag != "" {
			tags = append(tags, tag)
		}
	})

	return models.RawQuote{Text: text, Author: author, Tags: tags}, nil
}
