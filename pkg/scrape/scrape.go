// Package scrape implements the paginated extractors for the book catalog
// and the quote listing. Extraction is lazy: each iterator fetches one page
// at a time and yields raw items, following "next" links until the listing
// ends, the page budget runs out, or a terminal fetch failure occurs.
package scrape

import (
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"
)

// absoluteMaxPages caps pagination even when no explicit limit is
// configured, and the visited-URL set guards against next-link cycles.
const absoluteMaxPages = 200

// Stats accumulates per-extraction counters. Page-level failures end the
// listing but are recorded here instead of propagating.
type Stats struct {
	Pages   int
	Items   int
	Skipped int
	Errors  []string
}

func (s *Stats) addError(format string, args ...any) {
	s.Errors = append(s.Errors, fmt.Sprintf(format, args...))
}

// nextPageURL resolves the href of a "li.next > a" anchor against the
// current page URL. ok is false when the listing has no next page.
func nextPageURL(doc *goquery.Document, pageURL string) (string, bool) {
	href, exists := doc.Find("li.next > a").First().Attr("href")
	if !exists || href == "" {
		return "", false
	}
	return resolveURL(pageURL, href), true
}

// resolveURL joins a possibly relative href with the page it appeared on.
func resolveURL(pageURL, href string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func pageBudget(maxPages int) int {
	if maxPages <= 0 || maxPages > absoluteMaxPages {
		return absoluteMaxPages
	}
	return maxPages
}
