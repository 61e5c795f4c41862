package scrape

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/datapulse/ingest/models"
	"github.com/datapulse/ingest/pkg/fetcher"
)

const booksSource = "books.toscrape.com"

// Category is one catalog category discovered on the home page sidebar.
type Category struct {
	Name string
	URL  string
}

// BookScraper extracts catalog items category by category.
type BookScraper struct {
	fetcher  *fetcher.Fetcher
	baseURL  string
	maxPages int
	batchID  string
	log      *slog.Logger
}

// NewBookScraper builds a scraper. maxPages bounds pagination per category;
// <= 0 falls back to the defensive page cap.
func NewBookScraper(f *fetcher.Fetcher, baseURL string, maxPages int, batchID string, logger *slog.Logger) *BookScraper {
	if logger == nil {
		logger = slog.Default()
	}
	return &BookScraper{
		fetcher:  f,
		baseURL:  baseURL,
		maxPages: maxPages,
		batchID:  batchID,
		log:      logger,
	}
}

// Categories fetches the home page and returns the sidebar category list.
func (s *BookScraper) Categories(ctx context.Context) ([]Category, error) {
	doc, err := s.fetcher.GetDocument(ctx, s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch category index: %w", err)
	}

	var categories []Category
	doc.Find("div.side_categories ul.nav-list > li > ul > li > a").Each(func(_ int, sel *goquery.Selection) {
		name := strings.TrimSpace(sel.Text())
		href, _ := sel.Attr("href")
		if name == "" || href == "" {
			return
		}
		categories = append(categories, Category{
			Name: name,
			URL:  resolveURL(s.baseURL, href),
		})
	})

	s.log.Info("categories discovered", "count", len(categories))
	return categories, nil
}

// IterateCategory starts a fresh extraction of one category listing.
func (s *BookScraper) IterateCategory(cat Category) *BookIterator {
	return &BookIterator{
		scraper:  s,
		category: cat,
		current:  cat.URL,
		budget:   pageBudget(s.maxPages),
		visited:  make(map[string]bool),
	}
}

// FetchImage downloads one cover image. Image fetches ride the same client
// and therefore the same rate limiter as page fetches.
func (s *BookScraper) FetchImage(ctx context.Context, url string) ([]byte, error) {
	return s.fetcher.Get(ctx, url)
}

// BookIterator pages through one category listing, yielding raw catalog
// items.
type BookIterator struct {
	scraper  *BookScraper
	category Category
	current  string
	budget   int
	visited  map[string]bool
	buf      []models.RawBook
	done     bool
	stats    Stats
}

// Next yields the next raw book, fetching further pages as needed.
func (it *BookIterator) Next(ctx context.Context) (models.RawBook, bool) {
	for len(it.buf) == 0 && !it.done {
		it.fetchPage(ctx)
	}
	if len(it.buf) == 0 {
		return models.RawBook{}, false
	}
	b := it.buf[0]
	it.buf = it.buf[1:]
	return b, true
}

// Stats reports the counters accumulated so far.
func (it *BookIterator) Stats() Stats {
	return it.stats
}

func (it *BookIterator) fetchPage(ctx context.Context) {
	if it.current == "" || it.stats.Pages >= it.budget || it.visited[it.current] || ctx.Err() != nil {
		it.done = true
		return
	}
	it.visited[it.current] = true

	s := it.scraper
	s.log.Info("scraping page", "category", it.category.Name, "url", it.current)

	doc, err := s.fetcher.GetDocument(ctx, it.current)
	if err != nil {
		if !errors.Is(err, fetcher.ErrNotFound) {
			it.stats.addError("page fetch failed: %s: %v", it.current, err)
		}
		s.log.Warn("terminating category", "category", it.category.Name, "url", it.current, "error", err)
		it.done = true
		return
	}
	it.stats.Pages++

	fetchedAt := time.Now().UTC()
	pods := doc.Find("article.product_pod")
	if pods.Length() == 0 {
		s.log.Warn("no books found", "url", it.current)
		it.done = true
		return
	}

	pods.Each(func(_ int, sel *goquery.Selection) {
		b, err := it.parseBook(sel)
		if err != nil {
			it.stats.Skipped++
			s.log.Warn("book parse failed", "url", it.current, "error", err)
			return
		}
		b.Meta = models.RecordMeta{
			Source:    booksSource,
			FetchedAt: fetchedAt,
			BatchID:   s.batchID,
		}
		it.buf = append(it.buf, b)
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

func (it *BookIterator) parseBook(sel *goquery.Selection) (models.RawBook, error) {
	link := sel.Find("h3 > a").First()
	title, _ := link.Attr("title")
	if title == "" {
		title = strings.TrimSpace(link.Text())
	}
	if title == "" {
		return models.RawBook{}, errors.New("product block missing title")
	}

	price := strings.TrimSpace(sel.Find("p.price_color").First().Text())
	if price == "" {
		return models.RawBook{}, fmt.Errorf("product %q missing price", title)
	}

	availability := strings.TrimSpace(sel.Find("p.availability").First().Text())

	b := models.RawBook{
		Title:            title,
		PriceText:        price,
		RatingToken:      ratingToken(sel.Find("p.star-rating").First()),
		AvailabilityText: availability,
		Category:         it.category.Name,
	}
	if href, ok := link.Attr("href"); ok {
		b.URL = resolveURL(it.current, href)
	}
	if src, ok := sel.Find("img").First().Attr("src"); ok {
		b.ImageURL = resolveURL(it.current, src)
	}
	return b, nil
}

// ratingToken pulls the star token out of the class list, e.g.
// "star-rating Three" -> "Three".
func ratingToken(sel *goquery.Selection) string {
	class, _ := sel.Attr("class")
	for _, token := range strings.Fields(class) {
		if token != "star-rating" {
			return token
		}
	}
	return ""
}
