package scrape

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/datapulse/ingest/models"
	"github.com/datapulse/ingest/pkg/fetcher"
)

func quotePage(quotes []string, nextHref string) string {
	body := "<html><body>"
	for i, q := range quotes {
		body += fmt.Sprintf(`<div class="quote">
			<span class="text">%s</span>
			<small class="author">Author %d</small>
			<a class="tag">tag%d</a>
		</div>`, q, i, i)
	}
	if nextHref != "" {
		body += fmt.Sprintf(`<ul class="pager"><li class="next"><a href="%s">Next</a></li></ul>`, nextHref)
	}
	return body + "</body></html>"
}

func testFetcher() *fetcher.Fetcher {
	policy := fetcher.RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond}
	return fetcher.New(time.Second, policy, nil, "", nil)
}

func collectQuotes(t *testing.T, it *QuoteIterator) []models.RawQuote {
	t.Helper()
	var out []models.RawQuote
	for {
		q, ok := it.Next(context.Background())
		if !ok {
			return out
		}
		out = append(out, q)
	}
}

func TestQuoteIteratorFollowsPagination(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, quotePage([]string{"“One.”", "“Two.”"}, "/page/2/"))
	})
	mux.HandleFunc("/page/2/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, quotePage([]string{"“Three.”"}, "/page/3/"))
	})
	mux.HandleFunc("/page/3/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, quotePage([]string{"“Four.”"}, ""))
	})

	s := NewQuoteScraper(testFetcher(), srv.URL, 0, "batch-test", nil)
	it := s.Iterate()
	quotes := collectQuotes(t, it)

	if len(quotes) != 4 {
		t.Fatalf("expected 4 quotes across 3 pages, got %d", len(quotes))
	}
	stats := it.Stats()
	if stats.Pages != 3 {
		t.Errorf("Pages = %d, want 3", stats.Pages)
	}
	if stats.Items != 4 {
		t.Errorf("Items = %d, want 4", stats.Items)
	}
	if quotes[0].Text != "“One.”" {
		t.Errorf("first quote = %q", quotes[0].Text)
	}
	if quotes[0].Meta.BatchID != "batch-test" || quotes[0].Meta.Source != quotesSource {
		t.Errorf("metadata not stamped: %+v", quotes[0].Meta)
	}
	if len(quotes[0].Tags) != 1 {
		t.Errorf("tags not parsed: %v", quotes[0].Tags)
	}
}

func TestQuoteIteratorRespectsMaxPages(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	// Every page links to a fresh next page; only the budget stops us.
	page := 0
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		page++
		fmt.Fprint(w, quotePage([]string{fmt.Sprintf("“Quote %d.”", page)}, fmt.Sprintf("/?p=%d", page)))
	})

	s := NewQuoteScraper(testFetcher(), srv.URL, 2, "batch-test", nil)
	it := s.Iterate()
	quotes := collectQuotes(t, it)

	if len(quotes) != 2 {
		t.Fatalf("expected the 2-page budget to yield 2 quotes, got %d", len(quotes))
	}
	if it.Stats().Pages != 2 {
		t.Errorf("Pages = %d, want 2", it.Stats().Pages)
	}
}

func TestQuoteIteratorStopsOnCycle(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	// Page links back to itself.
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, quotePage([]string{"“Loop.”"}, "/"))
	})

	s := NewQuoteScraper(testFetcher(), srv.URL+"/", 0, "batch-test", nil)
	it := s.Iterate()
	quotes := collectQuotes(t, it)

	if len(quotes) != 1 {
		t.Fatalf("cycle must terminate after one page, got %d quotes", len(quotes))
	}
}

func TestQuoteIteratorSkipsUnparseableBlocks(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
			<div class="quote"><span class="text">“Good.”</span><small class="author">A</small></div>
			<div class="quote"><span class="text"></span></div>
		</body></html>`)
	})

	s := NewQuoteScraper(testFetcher(), srv.URL, 0, "batch-test", nil)
	it := s.Iterate()
	quotes := collectQuotes(t, it)

	if len(quotes) != 1 {
		t.Fatalf("expected 1 parseable quote, got %d", len(quotes))
	}
	if it.Stats().Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", it.Stats().Skipped)
	}
}

func TestQuoteIteratorRecordsPageError(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, quotePage([]string{"“First.”"}, "/boom"))
	})
	mux.HandleFunc("/boom", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	s := NewQuoteScraper(testFetcher(), srv.URL, 0, "batch-test", nil)
	it := s.Iterate()
	quotes := collectQuotes(t, it)

	if len(quotes) != 1 {
		t.Fatalf("expected quotes from the first page only, got %d", len(quotes))
	}
	if len(it.Stats().Errors) != 1 {
		t.Errorf("Errors = %v, want one recorded page failure", it.Stats().Errors)
	}
}

func TestQuoteIteratorNotFoundTerminatesQuietly(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, quotePage([]string{"“Only.”"}, "/gone"))
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	s := NewQuoteScraper(testFetcher(), srv.URL, 0, "batch-test", nil)
	it := s.Iterate()
	quotes := collectQuotes(t, it)

	if len(quotes) != 1 {
		t.Fatalf("expected 1 quote before the 404, got %d", len(quotes))
	}
	if len(it.Stats().Errors) != 0 {
		t.Errorf("a 404 is normal end of listing, got errors %v", it.Stats().Errors)
	}
}

func TestQuoteIteratorCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, quotePage([]string{"“Never.”"}, ""))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewQuoteScraper(testFetcher(), srv.URL, 0, "batch-test", nil)
	it := s.Iterate()
	if _, ok := it.Next(ctx); ok {
		t.Fatal("cancelled context must stop iteration before any fetch")
	}
}
