package crawler

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// SubregionURL builds the first index page URL of a sub-region:
// <base>/<mode path>/<region>-<sub>/emlakcidan/.
func SubregionURL(baseURL, pathSegment, region, subregion string) string {
	return fmt.Sprintf("%s/%s/%s-%s/emlakcidan/", strings.TrimRight(baseURL, "/"), pathSegment, region, subregion)
}

// PageURL identifies index page n of the sub-region whose first page is base.
func PageURL(base string, n int) string {
	return base + strconv.Itoa(n)
}

// PageURLs returns the page descriptors 1..n in order.
func PageURLs(base string, n int) []string {
	out := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, PageURL(base, i))
	}
	return out
}

// ResolveLinks makes listing hrefs absolute against the site base. Hrefs that do
// not parse are skipped.
func ResolveLinks(base *url.URL, hrefs []string) []string {
	out := make([]string, 0, len(hrefs))
	for _, href := range hrefs {
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			continue
		}
		if base == nil {
			out = append(out, ref.String())
			continue
		}
		out = append(out, base.ResolveReference(ref).String())
	}
	return out
}
