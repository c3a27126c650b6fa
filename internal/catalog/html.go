package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/konut-crawler/internal/crawler"
)

// DefaultURL is the public page listing every province and district.
const DefaultURL = "https://www.drdatastats.com/turkiye-il-ve-ilceler-listesi/"

// HTMLCatalog scrapes the first table of a page whose rows hold
// [index, province, district] after a header row.
type HTMLCatalog struct {
	fetcher crawler.Fetcher
	url     string
}

var _ crawler.RegionCatalog = (*HTMLCatalog)(nil)

// NewHTMLCatalog returns a catalog reading url through fetcher.
func NewHTMLCatalog(fetcher crawler.Fetcher, url string) *HTMLCatalog {
	if url == "" {
		url = DefaultURL
	}
	return &HTMLCatalog{fetcher: fetcher, url: url}
}

// Regions fetches and parses the catalog page.
func (c *HTMLCatalog) Regions(ctx context.Context) ([]crawler.Region, error) {
	resp, err := c.fetcher.Fetch(ctx, c.url)
	if err != nil {
		return nil, fmt.Errorf("fetch region catalog: %w", err)
	}
	return ParseTable(resp.Body)
}

// ParseTable extracts the grouped regions from an HTML catalog document.
func ParseTable(body []byte) ([]crawler.Region, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse region catalog: %w", err)
	}
	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, errors.New("region catalog has no table")
	}

	var pairs [][2]string
	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return
		}
		cells := row.Find("td")
		if cells.Length() < 3 {
			return
		}
		pairs = append(pairs, [2]string{
			strings.TrimSpace(cells.Eq(1).Text()),
			strings.TrimSpace(cells.Eq(2).Text()),
		})
	})

	regions := Group(pairs)
	if len(regions) == 0 {
		return nil, errors.New("region catalog table is empty")
	}
	return regions, nil
}
