package crawler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestOrchestrator(
	t *testing.T,
	cfg Config,
	catalog RegionCatalog,
	subs subregionCrawler,
	sink Sink,
	opts ...Option,
) *Orchestrator {
	t.Helper()
	opts = append([]Option{
		withSubregionCrawler(subs),
		WithPauser(noPause{}),
		WithClock(fixedClock{now: testNow}),
		WithIDGenerator(fixedIDs{id: "run-1"}),
	}, opts...)
	orch, err := NewOrchestrator(cfg, catalog, newFakeFetcher(), lineExtractor{}, sink, zap.NewNop(), opts...)
	require.NoError(t, err)
	return orch
}

func TestCheckpointDue(t *testing.T) {
	t.Parallel()

	require.True(t, checkpointDue(99, 100, 100))
	require.False(t, checkpointDue(100, 100, 100), "no growth means no checkpoint")
	require.False(t, checkpointDue(100, 150, 100))
	require.True(t, checkpointDue(150, 230, 100))
	require.True(t, checkpointDue(40, 310, 100), "skipping several multiples still fires once")
	require.False(t, checkpointDue(0, 500, 0), "zero interval disables checkpoints")
}

func TestOrchestratorRunWritesCheckpointsOnCrossing(t *testing.T) {
	t.Parallel()

	catalog := staticCatalog{regions: []Region{
		{ID: "istanbul", Subregions: []string{"a", "b", "c"}},
		{ID: "ankara", Subregions: []string{"d", "e"}},
	}}
	subs := &scriptedSubregions{counts: map[string]int{
		"istanbul/a": 60,
		"istanbul/b": 39,
		"istanbul/c": 1,
		"ankara/d":   150,
	}}
	sink := &memorySink{}
	pub := &memoryPublisher{}

	orch := newTestOrchestrator(t, testConfig(ModeRent, "https://site.test"), catalog, subs, sink, WithPublisher(pub))
	summary, err := orch.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, []string{
		"rented_apartments_intermediate_100",
		"rented_apartments_intermediate_250",
		"apartments_for_rent",
	}, sink.labels())
	require.Equal(t, []string{"istanbul/a", "istanbul/b", "istanbul/c", "ankara/d", "ankara/e"}, subs.visited)

	require.Equal(t, "run-1", summary.RunID)
	require.Equal(t, 250, summary.Records)
	require.Equal(t, 5, summary.Subregions)
	require.Equal(t, 1, summary.Empty)
	require.Zero(t, summary.Failed)
	require.Equal(t, 2, summary.Checkpoints)
	require.Equal(t, "memory://apartments_for_rent", summary.Location)

	final := sink.snapshots[2]
	require.True(t, final.Final)
	require.Len(t, final.Records, 250)
	require.Equal(t, RentSchema().Columns(), final.Columns)
	require.Equal(t, "istanbul-a-0", final.Records[0]["price"], "records keep crawl order")

	require.Len(t, pub.events, 3)
	require.Equal(t, []string{"snapshots", "snapshots", "snapshots"}, pub.topics)
	require.True(t, pub.events[2].Final)
	require.Equal(t, 250, pub.events[2].Records)
}

func TestOrchestratorSaleModeDefaultsToNoCheckpoints(t *testing.T) {
	t.Parallel()

	catalog := staticCatalog{regions: []Region{{ID: "izmir", Subregions: []string{"a", "b"}}}}
	subs := &scriptedSubregions{counts: map[string]int{"izmir/a": 120, "izmir/b": 90}}
	sink := &memorySink{}

	summary, err := newTestOrchestrator(t, testConfig(ModeSale, "https://site.test"), catalog, subs, sink).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"apartments_for_sale"}, sink.labels())
	require.Equal(t, 210, summary.Records)

	cfg := testConfig(ModeSale, "https://site.test")
	cfg.CheckpointEvery = 100
	cfg.CheckpointProvided = true
	sink = &memorySink{}
	subs = &scriptedSubregions{counts: map[string]int{"izmir/a": 120, "izmir/b": 90}}
	_, err = newTestOrchestrator(t, cfg, catalog, subs, sink).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{
		"sale_apartments_intermediate_120",
		"sale_apartments_intermediate_210",
		"apartments_for_sale",
	}, sink.labels())
}

func TestOrchestratorCatalogFailureIsFatal(t *testing.T) {
	t.Parallel()

	sink := &memorySink{}
	subs := &scriptedSubregions{}
	orch := newTestOrchestrator(t, testConfig(ModeRent, "https://site.test"),
		staticCatalog{err: errors.New("index page unreachable")}, subs, sink)

	_, err := orch.Run(context.Background())
	require.ErrorIs(t, err, ErrCatalogUnavailable)
	require.Empty(t, sink.labels(), "nothing is persisted without a catalog")
	require.Empty(t, subs.visited)
}

func TestOrchestratorCancellationPersistsPartialResults(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	catalog := staticCatalog{regions: []Region{{ID: "bursa", Subregions: []string{"a", "b", "c"}}}}
	subs := &scriptedSubregions{
		counts: map[string]int{"bursa/a": 7, "bursa/b": 5, "bursa/c": 3},
		onCrawl: func(_, sub string) {
			if sub == "a" {
				cancel()
			}
		},
	}
	sink := &memorySink{}

	summary, err := newTestOrchestrator(t, testConfig(ModeRent, "https://site.test"), catalog, subs, sink).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, []string{"bursa/a"}, subs.visited)
	require.Equal(t, 7, summary.Records)
	require.Equal(t, []string{"apartments_for_rent"}, sink.labels())
	require.NoError(t, sink.ctxErrs[0], "final snapshot must be written with a live context")
}

func TestOrchestratorRegionSelection(t *testing.T) {
	t.Parallel()

	catalog := staticCatalog{regions: []Region{
		{ID: "adana", Subregions: []string{"x"}},
		{ID: "bursa", Subregions: []string{"y"}},
		{ID: "corum", Subregions: []string{"z"}},
	}}

	cfg := testConfig(ModeRent, "https://site.test")
	cfg.Regions = []string{"corum", "bursa"}
	subs := &scriptedSubregions{}
	_, err := newTestOrchestrator(t, cfg, catalog, subs, &memorySink{}).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"bursa/y", "corum/z"}, subs.visited, "catalog order wins over filter order")

	cfg = testConfig(ModeRent, "https://site.test")
	cfg.MaxRegions = 2
	subs = &scriptedSubregions{}
	_, err = newTestOrchestrator(t, cfg, catalog, subs, &memorySink{}).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"adana/x", "bursa/y"}, subs.visited)
}

func TestOrchestratorPersistFailures(t *testing.T) {
	t.Parallel()

	catalog := staticCatalog{regions: []Region{{ID: "mersin", Subregions: []string{"a"}}}}
	subs := &scriptedSubregions{counts: map[string]int{"mersin/a": 100}}

	sink := new(MockSink)
	sink.On("Persist", mock.Anything, mock.MatchedBy(func(s Snapshot) bool { return !s.Final })).
		Return("", errors.New("bucket unavailable")).Once()
	sink.On("Persist", mock.Anything, mock.MatchedBy(func(s Snapshot) bool { return s.Final })).
		Return("", errors.New("bucket unavailable")).Once()

	summary, err := newTestOrchestrator(t, testConfig(ModeRent, "https://site.test"), catalog, subs, sink).Run(context.Background())
	require.Error(t, err)
	require.ErrorContains(t, err, "persist final snapshot")
	require.Zero(t, summary.Checkpoints, "failed checkpoints are not counted")
	require.Equal(t, 100, summary.Records)
	sink.AssertExpectations(t)
}

func TestNewOrchestratorValidates(t *testing.T) {
	t.Parallel()

	_, err := NewOrchestrator(testConfig(ModeRent, "not a url"), staticCatalog{}, newFakeFetcher(), lineExtractor{}, &memorySink{}, nil)
	require.Error(t, err)

	_, err = NewOrchestrator(testConfig(ModeRent, "https://site.test"), nil, newFakeFetcher(), lineExtractor{}, &memorySink{}, nil)
	require.Error(t, err)
}
