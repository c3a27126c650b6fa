// Package catalog builds the province/district taxonomy the crawler walks.
package catalog

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/JakeFAU/konut-crawler/internal/crawler"
)

// Letters that carry no combining mark under NFD and would otherwise be dropped.
var undecomposable = strings.NewReplacer(
	"ı", "i",
	"ß", "ss",
	"æ", "ae",
	"Æ", "AE",
	"ø", "o",
	"Ø", "O",
	"đ", "d",
	"Đ", "D",
	"ł", "l",
	"Ł", "L",
)

// Transliterate folds s to plain ASCII: diacritics are stripped and the Turkish
// dotless i becomes i. Characters without an ASCII counterpart are removed.
func Transliterate(s string) string {
	s = undecomposable.Replace(s)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if r < unicode.MaxASCII {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Normalize turns a display name into its identifier form: ASCII, lower case,
// trimmed.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(Transliterate(name)))
}

// NormalizeSubregion applies the site's slug exceptions to an already normalized
// sub-region of region.
func NormalizeSubregion(region, sub string) string {
	switch sub {
	case "merkez":
		return region + "-merkez"
	case "19 mayis":
		return "19-mayis"
	default:
		return sub
	}
}

// Group folds (region, sub-region) display-name pairs into regions. Regions keep the
// order of their first appearance and sub-regions keep input order.
func Group(pairs [][2]string) []crawler.Region {
	index := make(map[string]int)
	var regions []crawler.Region
	for _, p := range pairs {
		region := Normalize(p[0])
		sub := Normalize(p[1])
		if region == "" || sub == "" {
			continue
		}
		i, ok := index[region]
		if !ok {
			i = len(regions)
			index[region] = i
			regions = append(regions, crawler.Region{ID: region})
		}
		regions[i].Subregions = append(regions[i].Subregions, NormalizeSubregion(region, sub))
	}
	return regions
}
