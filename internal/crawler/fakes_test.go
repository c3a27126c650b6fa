package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
)

// fakeFetcher serves canned bodies keyed by URL and counts every call.
type fakeFetcher struct {
	mu     sync.Mutex
	bodies map[string]string
	errs   map[string]error
	calls  map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		bodies: make(map[string]string),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
	}
}

func (f *fakeFetcher) serve(url, body string) *fakeFetcher {
	f.bodies[url] = body
	return f
}

func (f *fakeFetcher) fail(url string, err error) *fakeFetcher {
	f.errs[url] = err
	return f
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (FetchResponse, error) {
	f.mu.Lock()
	f.calls[url]++
	body, ok := f.bodies[url]
	err := f.errs[url]
	f.mu.Unlock()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return FetchResponse{}, ctxErr
	}
	if err != nil {
		return FetchResponse{}, err
	}
	if !ok {
		return FetchResponse{}, &FatalError{URL: url, StatusCode: 404}
	}
	return FetchResponse{URL: url, StatusCode: 200, Body: []byte(body), Attempts: 1}, nil
}

func (f *fakeFetcher) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func (f *fakeFetcher) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

// lineExtractor understands a tiny line-oriented document format:
//
//	NO_RESULTS          empty-search sentinel
//	count:<text>        listing count marker
//	link:<href>         listing link on an index page
//	price:<value>       listing price
//	loc:<a>/<b>/<c>     listing breadcrumb
//	info:<label>=<val>  about-block entry
//	PANIC / BROKEN      make the extractor panic or fail
type lineExtractor struct{}

func (lineExtractor) lines(body []byte) []string {
	text := string(body)
	if strings.Contains(text, "PANIC") {
		panic("extractor exploded")
	}
	return strings.Split(text, "\n")
}

func (e lineExtractor) ListingFields(body []byte) (ListingFields, error) {
	if strings.Contains(string(body), "BROKEN") {
		return ListingFields{}, errors.New("malformed listing")
	}
	out := ListingFields{Info: map[string]string{}}
	for _, line := range e.lines(body) {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch key {
		case "price":
			out.Price = value
		case "loc":
			parts := strings.SplitN(value, "/", 3)
			copy(out.Location[:], parts)
		case "info":
			label, v, _ := strings.Cut(value, "=")
			out.Info[label] = v
		}
	}
	return out, nil
}

func (e lineExtractor) ListingLinks(body []byte) ([]string, error) {
	if strings.Contains(string(body), "BROKEN") {
		return nil, errors.New("malformed index page")
	}
	var links []string
	for _, line := range e.lines(body) {
		if href, ok := strings.CutPrefix(line, "link:"); ok {
			links = append(links, href)
		}
	}
	return links, nil
}

func (e lineExtractor) CountText(body []byte) (string, bool, error) {
	for _, line := range e.lines(body) {
		if text, ok := strings.CutPrefix(line, "count:"); ok {
			return text, true, nil
		}
	}
	return "", false, nil
}

func (lineExtractor) NoResults(body []byte) bool {
	return strings.Contains(string(body), "NO_RESULTS")
}

// indexPage renders an index page linking to the given hrefs.
func indexPage(count string, hrefs ...string) string {
	var b strings.Builder
	if count != "" {
		fmt.Fprintf(&b, "count:%s\n", count)
	}
	for _, h := range hrefs {
		fmt.Fprintf(&b, "link:%s\n", h)
	}
	return b.String()
}

func listingPage(price string) string {
	return fmt.Sprintf("price:%s\nloc:Istanbul/Kadikoy/Moda\ninfo:Oda Sayısı=2+1\n", price)
}

// MockSink records persisted snapshots.
type MockSink struct {
	mock.Mock
}

func (m *MockSink) Persist(ctx context.Context, snapshot Snapshot) (string, error) {
	args := m.Called(ctx, snapshot)
	return args.String(0), args.Error(1)
}

// memorySink keeps copies of every snapshot it receives.
type memorySink struct {
	mu        sync.Mutex
	snapshots []Snapshot
	err       error
	ctxErrs   []error
}

func (s *memorySink) Persist(ctx context.Context, snapshot Snapshot) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctxErrs = append(s.ctxErrs, ctx.Err())
	if s.err != nil {
		return "", s.err
	}
	snapshot.Records = append([]Record(nil), snapshot.Records...)
	s.snapshots = append(s.snapshots, snapshot)
	return "memory://" + snapshot.Label, nil
}

func (s *memorySink) labels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.snapshots))
	for i, snap := range s.snapshots {
		out[i] = snap.Label
	}
	return out
}

type memoryPublisher struct {
	mu     sync.Mutex
	events []SnapshotEvent
	topics []string
}

func (p *memoryPublisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	if ev, ok := payload.(SnapshotEvent); ok {
		p.events = append(p.events, ev)
	}
	return fmt.Sprintf("msg-%d", len(p.events)), nil
}

type staticCatalog struct {
	regions []Region
	err     error
}

func (c staticCatalog) Regions(context.Context) ([]Region, error) {
	return c.regions, c.err
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type fixedIDs struct{ id string }

func (g fixedIDs) NewID() (string, error) { return g.id, nil }

type noPause struct{}

func (noPause) Pause(ctx context.Context, _ time.Duration) error { return ctx.Err() }

// scriptedSubregions returns a fixed number of records per sub-region.
type scriptedSubregions struct {
	mu      sync.Mutex
	counts  map[string]int
	visited []string
	onCrawl func(region, sub string)
}

func (s *scriptedSubregions) Crawl(_ context.Context, region, sub string) SubregionResult {
	s.mu.Lock()
	s.visited = append(s.visited, region+"/"+sub)
	n := s.counts[region+"/"+sub]
	hook := s.onCrawl
	s.mu.Unlock()
	if hook != nil {
		hook(region, sub)
	}

	res := SubregionResult{Region: region, Subregion: sub}
	res.enter(StateStart)
	res.enter(StateFetchFirstPage)
	if n == 0 {
		res.enter(StateEmpty)
		res.enter(StateDone)
		return res
	}
	for i := 0; i < n; i++ {
		res.Records = append(res.Records, Record{"price": fmt.Sprintf("%s-%s-%d", region, sub, i)})
	}
	res.enter(StateBuildPageSet)
	res.enter(StateDispatch)
	res.enter(StateMerge)
	res.enter(StateDone)
	return res
}

func testConfig(mode Mode, baseURL string) Config {
	return Config{
		Mode:           mode,
		BaseURL:        baseURL,
		PageWorkers:    DefaultPageWorkers,
		ListingWorkers: DefaultListingWorkers,
		PageSize:       DefaultPageSize,
		MaxPages:       DefaultMaxPages,
		PublishTopic:   "snapshots",
	}
}
