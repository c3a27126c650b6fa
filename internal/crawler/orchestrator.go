package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/konut-crawler/internal/metrics"
)

// Orchestrator walks the region catalog sequentially, crawls every sub-region and
// persists checkpoint and final snapshots of the accumulated records.
type Orchestrator struct {
	cfg        Config
	spec       ModeSpec
	catalog    RegionCatalog
	subregions subregionCrawler
	sink       Sink
	publisher  Publisher
	progress   ProgressReporter
	clock      Clock
	ids        IDGenerator
	pause      Pauser
	logger     *zap.Logger
}

type subregionCrawler interface {
	Crawl(ctx context.Context, region, subregion string) SubregionResult
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithPublisher publishes a SnapshotEvent after every persisted snapshot.
func WithPublisher(p Publisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithProgress registers a progress reporter.
func WithProgress(p ProgressReporter) Option {
	return func(o *Orchestrator) { o.progress = p }
}

// WithClock overrides the wall clock.
func WithClock(c Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// WithIDGenerator overrides the run ID source.
func WithIDGenerator(g IDGenerator) Option {
	return func(o *Orchestrator) { o.ids = g }
}

// WithPauser replaces the timer used for the delay between sub-regions.
func WithPauser(p Pauser) Option {
	return func(o *Orchestrator) { o.pause = p }
}

func withSubregionCrawler(c subregionCrawler) Option {
	return func(o *Orchestrator) { o.subregions = c }
}

// NewOrchestrator wires the full crawl pipeline for cfg.Mode.
func NewOrchestrator(
	cfg Config,
	catalog RegionCatalog,
	fetcher Fetcher,
	extractor Extractor,
	sink Sink,
	logger *zap.Logger,
	opts ...Option,
) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if catalog == nil || fetcher == nil || extractor == nil || sink == nil {
		return nil, errors.New("catalog, fetcher, extractor and sink are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	spec, err := SpecFor(cfg.Mode)
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	listings := NewListingExtractor(fetcher, extractor, spec.Schema, logger.Named("listing"))
	pages := NewPageCrawler(fetcher, extractor, listings, base, cfg.ListingWorkers, logger.Named("page"))

	o := &Orchestrator{
		cfg:        cfg,
		spec:       spec,
		catalog:    catalog,
		subregions: NewSubregionCrawler(cfg, spec, fetcher, extractor, pages, logger.Named("subregion")),
		sink:       sink,
		progress:   nopProgress{},
		clock:      wallClock{},
		ids:        sequentialIDs{},
		pause:      PauseFunc(Sleep),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Run crawls every selected sub-region and returns the run summary. A catalog
// failure is fatal and nothing is persisted. Cancelling ctx stops the walk between
// sub-regions; the records gathered so far are still written as the final snapshot.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	start := o.clock.Now()
	runID, err := o.ids.NewID()
	if err != nil {
		return Summary{}, fmt.Errorf("generate run id: %w", err)
	}
	logger := o.logger.With(zap.String("run_id", runID), zap.String("mode", string(o.spec.Mode)))

	regions, err := o.catalog.Regions(ctx)
	if err != nil {
		metrics.ObserveRun("failed")
		return Summary{}, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}
	regions = o.selectRegions(regions)

	total := 0
	for _, r := range regions {
		total += len(r.Subregions)
	}
	logger.Info("crawl started", zap.Int("regions", len(regions)), zap.Int("subregions", total))
	o.progress.RunStarted(runID, o.spec.Mode, total)

	summary := Summary{RunID: runID, Mode: o.spec.Mode}
	every := o.cfg.checkpointInterval(o.spec)
	var (
		all    []Record
		runErr error
	)

walk:
	for _, region := range regions {
		for _, sub := range region.Subregions {
			if err := o.pause.Pause(ctx, o.cfg.SubregionDelay); err != nil {
				runErr = err
				break walk
			}
			res := o.subregions.Crawl(ctx, region.ID, sub)

			prev := len(all)
			all = append(all, res.Records...)
			metrics.SetRecordsAccumulated(len(all))
			summary.Subregions++
			switch res.Outcome() {
			case "failed":
				summary.Failed++
			case "empty":
				summary.Empty++
			}
			o.progress.SubregionFinished(res)

			if checkpointDue(prev, len(all), every) {
				label := fmt.Sprintf("%s_%d", o.spec.CheckpointPrefix, len(all))
				if _, err := o.persist(ctx, runID, label, all, false); err != nil {
					logger.Error("checkpoint persist failed", zap.String("label", label), zap.Error(err))
				} else {
					summary.Checkpoints++
					o.progress.CheckpointWritten(label, len(all))
				}
			}
		}
	}

	persistCtx := ctx
	if ctx.Err() != nil {
		persistCtx = context.WithoutCancel(ctx)
	}
	location, persistErr := o.persist(persistCtx, runID, o.spec.FinalLabel, all, true)
	summary.Location = location
	summary.Records = len(all)
	summary.Elapsed = o.clock.Now().Sub(start)
	o.progress.RunFinished(summary)

	if persistErr != nil {
		metrics.ObserveRun("failed")
		return summary, errors.Join(runErr, fmt.Errorf("persist final snapshot: %w", persistErr))
	}
	if runErr != nil {
		metrics.ObserveRun("canceled")
		logger.Warn("crawl interrupted", zap.Int("records", summary.Records), zap.Error(runErr))
		return summary, runErr
	}
	metrics.ObserveRun("succeeded")
	logger.Info("crawl completed",
		zap.Duration("elapsed", summary.Elapsed),
		zap.Int("records", summary.Records),
		zap.Int("subregions", summary.Subregions),
		zap.Int("empty", summary.Empty),
		zap.Int("failed", summary.Failed),
		zap.String("location", summary.Location),
	)
	return summary, nil
}

func (o *Orchestrator) persist(ctx context.Context, runID, label string, records []Record, final bool) (string, error) {
	kind := "checkpoint"
	if final {
		kind = "final"
	}
	snap := Snapshot{
		RunID:   runID,
		Mode:    o.spec.Mode,
		Label:   label,
		Columns: o.spec.Schema.Columns(),
		Records: records,
		Final:   final,
		TakenAt: o.clock.Now(),
	}
	location, err := o.sink.Persist(ctx, snap)
	if err != nil {
		metrics.ObserveCheckpoint(kind, "failed")
		return "", err
	}
	metrics.ObserveCheckpoint(kind, "persisted")
	o.logger.Info("snapshot persisted",
		zap.String("label", label),
		zap.Int("records", len(records)),
		zap.String("location", location),
	)
	o.publish(ctx, SnapshotEvent{
		RunID:    runID,
		Mode:     o.spec.Mode,
		Label:    label,
		Final:    final,
		Records:  len(records),
		Location: location,
		At:       snap.TakenAt,
	})
	return location, nil
}

func (o *Orchestrator) publish(ctx context.Context, event SnapshotEvent) {
	if o.publisher == nil {
		return
	}
	if _, err := o.publisher.Publish(ctx, o.cfg.PublishTopic, event); err != nil {
		o.logger.Warn("snapshot event publish failed", zap.String("label", event.Label), zap.Error(err))
	}
}

// selectRegions applies the region filter and the region cap.
func (o *Orchestrator) selectRegions(regions []Region) []Region {
	if len(o.cfg.Regions) > 0 {
		allowed := make(map[string]struct{}, len(o.cfg.Regions))
		for _, id := range o.cfg.Regions {
			allowed[id] = struct{}{}
		}
		filtered := make([]Region, 0, len(o.cfg.Regions))
		for _, r := range regions {
			if _, ok := allowed[r.ID]; ok {
				filtered = append(filtered, r)
			}
		}
		regions = filtered
	}
	if o.cfg.MaxRegions > 0 && len(regions) > o.cfg.MaxRegions {
		regions = regions[:o.cfg.MaxRegions]
	}
	return regions
}

// checkpointDue reports whether growing the accumulator from prev to cur crossed
// a multiple of every.
func checkpointDue(prev, cur, every int) bool {
	return every > 0 && cur > prev && cur/every > prev/every
}

type nopProgress struct{}

func (nopProgress) RunStarted(string, Mode, int)      {}
func (nopProgress) SubregionFinished(SubregionResult) {}
func (nopProgress) CheckpointWritten(string, int)     {}
func (nopProgress) RunFinished(Summary)               {}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now().UTC() }

type sequentialIDs struct{}

func (sequentialIDs) NewID() (string, error) {
	return fmt.Sprintf("run-%d", time.Now().UnixNano()), nil
}
