package crawler

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var nonDigits = regexp.MustCompile(`\D`)

// ParseCount turns the count marker text into a number. Thousands separators and
// any other non-digit characters are dropped; ok is false when no digit remains.
// A count too large for an int saturates at math.MaxInt.
func ParseCount(text string) (int, bool) {
	digits := nonDigits.ReplaceAllString(strings.ReplaceAll(text, ".", ""), "")
	if digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if errors.Is(err, strconv.ErrRange) {
		return math.MaxInt, true
	}
	if err != nil {
		return 0, false
	}
	return n, true
}

// PageCount derives the number of index pages for count listings:
// min(count/pageSize + 1, maxPages).
func PageCount(count, pageSize, maxPages int) int {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if count < 0 {
		count = 0
	}
	n := count/pageSize + 1
	if maxPages > 0 && n > maxPages {
		n = maxPages
	}
	return n
}

// EstimatePages inspects a sub-region's first index page. It returns ErrNoResults
// when the page carries the empty-search sentinel and zero pages when the count
// marker is missing or holds no digits.
func EstimatePages(body []byte, extractor Extractor, pageSize, maxPages int) (int, error) {
	if extractor.NoResults(body) {
		return 0, ErrNoResults
	}
	text, found, err := extractor.CountText(body)
	if err != nil {
		return 0, fmt.Errorf("extract count: %w", err)
	}
	if !found {
		return 0, nil
	}
	count, ok := ParseCount(text)
	if !ok {
		return 0, nil
	}
	return PageCount(count, pageSize, maxPages), nil
}
