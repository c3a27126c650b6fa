// Package extract reads listing data out of emlakjet HTML documents with goquery.
package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/JakeFAU/konut-crawler/internal/crawler"
)

// Selectors locates the marked elements of listing and index documents.
type Selectors struct {
	Price         string `mapstructure:"price"`
	Location      string `mapstructure:"location"`
	AboutItems    string `mapstructure:"about_items"`
	Count         string `mapstructure:"count"`
	ListingLinks  string `mapstructure:"listing_links"`
	NoResultsText string `mapstructure:"no_results_text"`
}

// DefaultSelectors matches the markup the site served when the crawler was written.
func DefaultSelectors() Selectors {
	return Selectors{
		Price:         ".styles_price__6zH_9",
		Location:      ".styles_location__Y01SC",
		AboutItems:    "#ilan-hakkinda > div > div > ul > li",
		Count:         ".styles_strong__cM487",
		ListingLinks:  "div:nth-of-type(1) > div:nth-of-type(4) > div:nth-of-type(2) > div:nth-of-type(3) div > a[href]",
		NoResultsText: "Aradığınız kriterlere uygun ilan bulunamadı.",
	}
}

const locationSeparator = " - "

// Extractor implements crawler.Extractor over goquery documents.
type Extractor struct {
	price     cascadia.Selector
	location  cascadia.Selector
	about     cascadia.Selector
	count     cascadia.Selector
	links     cascadia.Selector
	noResults string
}

var _ crawler.Extractor = (*Extractor)(nil)

// New compiles sel. Empty selectors fall back to DefaultSelectors.
func New(sel Selectors) (*Extractor, error) {
	def := DefaultSelectors()
	compile := func(name, raw, fallback string) (cascadia.Selector, error) {
		if strings.TrimSpace(raw) == "" {
			raw = fallback
		}
		s, err := cascadia.Compile(raw)
		if err != nil {
			return nil, fmt.Errorf("compile %s selector %q: %w", name, raw, err)
		}
		return s, nil
	}

	e := &Extractor{noResults: sel.NoResultsText}
	if e.noResults == "" {
		e.noResults = def.NoResultsText
	}
	var err error
	if e.price, err = compile("price", sel.Price, def.Price); err != nil {
		return nil, err
	}
	if e.location, err = compile("location", sel.Location, def.Location); err != nil {
		return nil, err
	}
	if e.about, err = compile("about_items", sel.AboutItems, def.AboutItems); err != nil {
		return nil, err
	}
	if e.count, err = compile("count", sel.Count, def.Count); err != nil {
		return nil, err
	}
	if e.links, err = compile("listing_links", sel.ListingLinks, def.ListingLinks); err != nil {
		return nil, err
	}
	return e, nil
}

func parse(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// ListingFields reads price, breadcrumb location and the "about" block.
// Missing elements leave their values empty.
func (e *Extractor) ListingFields(body []byte) (crawler.ListingFields, error) {
	doc, err := parse(body)
	if err != nil {
		return crawler.ListingFields{}, err
	}
	out := crawler.ListingFields{Info: make(map[string]string)}

	if price := doc.FindMatcher(e.price).First(); price.Length() > 0 {
		out.Price = firstOwnText(price.Get(0))
	}
	if loc := doc.FindMatcher(e.location).First(); loc.Length() > 0 {
		// A breadcrumb without separators is not a location.
		if text := strings.TrimSpace(loc.Text()); strings.Contains(text, locationSeparator) {
			parts := strings.Split(text, locationSeparator)
			for i := 0; i < len(out.Location) && i < len(parts); i++ {
				out.Location[i] = strings.TrimSpace(parts[i])
			}
		}
	}
	doc.FindMatcher(e.about).Each(func(_ int, li *goquery.Selection) {
		spans := li.Find("span")
		if spans.Length() < 2 {
			return
		}
		label := strings.TrimSpace(spans.Eq(0).Text())
		if label == "" {
			return
		}
		// Repeated labels keep the last value.
		out.Info[label] = strings.TrimSpace(spans.Eq(1).Text())
	})
	return out, nil
}

// ListingLinks returns the raw hrefs of the listing cards on an index page.
func (e *Extractor) ListingLinks(body []byte) ([]string, error) {
	doc, err := parse(body)
	if err != nil {
		return nil, err
	}
	var links []string
	doc.FindMatcher(e.links).Each(func(_ int, a *goquery.Selection) {
		if href, ok := a.Attr("href"); ok && strings.TrimSpace(href) != "" {
			links = append(links, href)
		}
	})
	return links, nil
}

// CountText returns the text of the listing count marker.
func (e *Extractor) CountText(body []byte) (string, bool, error) {
	doc, err := parse(body)
	if err != nil {
		return "", false, err
	}
	marker := doc.FindMatcher(e.count).First()
	if marker.Length() == 0 {
		return "", false, nil
	}
	return strings.TrimSpace(marker.Text()), true, nil
}

// NoResults reports whether the document contains the empty-search sentinel,
// either verbatim or entity-encoded.
func (e *Extractor) NoResults(body []byte) bool {
	if bytes.Contains(body, []byte(e.noResults)) {
		return true
	}
	if bytes.IndexByte(body, '&') < 0 {
		return false
	}
	return strings.Contains(html.UnescapeString(string(body)), e.noResults)
}

// firstOwnText returns the first non-blank text node directly under n. Child
// elements such as currency suffixes are ignored.
func firstOwnText(n *html.Node) string {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.TextNode {
			continue
		}
		if text := strings.TrimSpace(c.Data); text != "" {
			return text
		}
	}
	return ""
}
