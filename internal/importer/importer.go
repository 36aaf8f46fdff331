// Package importer orchestrates one import run: stream the places feed,
// reconstruct the administrative hierarchy, merge alternate names, and
// persist the snapshot.
package importer

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/geonames-cli/internal/config"
	"github.com/sells-group/geonames-cli/internal/feed"
	"github.com/sells-group/geonames-cli/internal/hierarchy"
	"github.com/sells-group/geonames-cli/internal/model"
	"github.com/sells-group/geonames-cli/internal/store"
)

// Importer runs the import pipeline against a single store.
type Importer struct {
	cfg config.ImportConfig
	st  store.Store
	log *zap.Logger
}

// New creates an Importer.
func New(cfg config.ImportConfig, st store.Store) *Importer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	return &Importer{
		cfg: cfg,
		st:  st,
		log: zap.L().With(zap.String("component", "importer")),
	}
}

// Run executes one complete import and returns its counters. The places and
// names pipelines run concurrently; the store serializes their commits. A
// run row is recorded regardless of outcome.
func (imp *Importer) Run(ctx context.Context) (*model.RunStats, error) {
	started := time.Now().UTC()
	stats := &model.RunStats{}

	runErr := imp.run(ctx, stats)

	status := model.RunStatusComplete
	if runErr != nil {
		status = model.RunStatusFailed
	}
	run := &model.ImportRun{
		ID:         uuid.NewString(),
		PlacesPath: imp.cfg.PlacesPath,
		NamesPath:  imp.cfg.NamesPath,
		Status:     status,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
		Stats:      *stats,
	}
	if err := imp.st.RecordRun(ctx, run); err != nil {
		imp.log.Warn("failed to record run", zap.Error(err))
	}

	imp.log.Info("import finished",
		zap.String("run_id", run.ID),
		zap.String("status", status),
		zap.Int64("places", stats.Places),
		zap.Int64("names", stats.Names),
		zap.Int64("malformed_places", stats.MalformedPlaces),
		zap.Int64("malformed_names", stats.MalformedNames),
		zap.Int64("duplicate_definers", stats.DuplicateDefiners),
		zap.Int64("missing_parents", stats.MissingParents),
		zap.Int64("spatial_fallbacks", stats.SpatialFallbacks),
		zap.Int64("walkup_fallbacks", stats.WalkupFallbacks),
		zap.Int64("root_places", stats.RootPlaces),
		zap.Int64("orphan_names", stats.OrphanNames),
		zap.Duration("elapsed", run.FinishedAt.Sub(started)),
	)

	return stats, runErr
}

func (imp *Importer) run(ctx context.Context, stats *model.RunStats) error {
	if err := imp.st.Migrate(ctx); err != nil {
		return err
	}

	// The two feeds are independent and write to independent tables, so
	// they run concurrently. The names pipeline keeps its own counters and
	// merges them after the group completes; the places pipeline is the
	// sole writer of the remaining stats fields.
	var names nameCounters

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return imp.runPlaces(gctx, stats)
	})
	if !imp.cfg.SkipNames {
		g.Go(func() error {
			return imp.runNames(gctx, &names)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	stats.Names = names.written
	stats.MalformedNames = names.malformed

	if err := imp.st.CreateIndexes(ctx); err != nil {
		return err
	}

	if !imp.cfg.SkipNames {
		orphans, err := imp.st.OrphanNames(ctx)
		if err != nil {
			return err
		}
		stats.OrphanNames = orphans
	}

	return nil
}

// runPlaces performs the two-pass hierarchy resolution.
//
// Pass 1 streams the whole feed but buffers only Country through District
// records; draining those buffers in tier order populates the admin key
// index and the spatial index, guaranteeing that every coarse parent is
// defined before any fine record queries it. Pass 2 re-opens the feed and
// stream-resolves the remaining tiers against the completed indexes.
func (imp *Importer) runPlaces(ctx context.Context, stats *model.RunStats) error {
	index := hierarchy.NewAdminIndex()
	spatial := hierarchy.NewSpatialIndex(imp.cfg.NearestCandidates)
	resolver := hierarchy.NewResolver(index, spatial, stats)
	batcher := newPlaceBatcher(imp.st, imp.cfg.BatchSize)

	buffered, err := imp.collectAdminTiers(ctx, stats)
	if err != nil {
		return err
	}

	// Drain Country -> Region -> County -> District in order. Records are
	// resolved before being registered so a tier's duplicates still resolve
	// against the coarser tiers, then the first-seen record defines the key.
	for tier := hierarchy.TierCountry; tier <= hierarchy.TierDistrict; tier++ {
		for _, rec := range buffered[tier] {
			resolved := resolver.Resolve(rec)
			index.Define(tier, rec)
			if tier == hierarchy.TierDistrict {
				spatial.Add(rec.CountryCode, rec.GeonameID, rec.Lat, rec.Lon)
			}
			if err := batcher.add(ctx, resolved); err != nil {
				return err
			}
		}
		imp.log.Info("admin tier resolved",
			zap.String("tier", tier.String()),
			zap.Int("records", len(buffered[tier])),
		)
	}
	buffered = nil

	// Spatial index is complete; fine-grained tiers may now fall back to it.
	if err := imp.resolveFineTiers(ctx, resolver, batcher); err != nil {
		return err
	}

	if err := batcher.flush(ctx); err != nil {
		return err
	}

	stats.Places = batcher.written
	stats.DuplicateDefiners = index.Duplicates()
	return nil
}

// collectAdminTiers is pass 1: classify every record, keep Country..District.
func (imp *Importer) collectAdminTiers(ctx context.Context, stats *model.RunStats) ([][]*model.PlaceRecord, error) {
	r, err := feed.OpenPlaces(imp.cfg.PlacesPath)
	if err != nil {
		return nil, err
	}
	defer r.Close() //nolint:errcheck
	imp.attachProgress(r.Size(), "places: classify", r.SetProgress)

	buffered := make([][]*model.PlaceRecord, hierarchy.TierDistrict+1)
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "importer: classify pass cancelled")
		}
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		total++

		if tier := hierarchy.ClassifyTier(rec.FeatureCode); tier.Admin() {
			buffered[tier] = append(buffered[tier], rec)
		}
	}

	stats.MalformedPlaces = r.Malformed()
	imp.log.Info("classify pass complete",
		zap.Int64("records", total),
		zap.Int64("malformed", stats.MalformedPlaces),
		zap.Int("countries", len(buffered[hierarchy.TierCountry])),
		zap.Int("regions", len(buffered[hierarchy.TierRegion])),
		zap.Int("counties", len(buffered[hierarchy.TierCounty])),
		zap.Int("districts", len(buffered[hierarchy.TierDistrict])),
	)
	return buffered, nil
}

// resolveFineTiers is pass 2: re-open the feed and resolve everything the
// admin drain did not already write.
func (imp *Importer) resolveFineTiers(ctx context.Context, resolver *hierarchy.Resolver, batcher *placeBatcher) error {
	r, err := feed.OpenPlaces(imp.cfg.PlacesPath)
	if err != nil {
		return err
	}
	defer r.Close() //nolint:errcheck
	imp.attachProgress(r.Size(), "places: resolve", r.SetProgress)

	for {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "importer: resolve pass cancelled")
		}
		rec, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		// Admin tiers were written during the drain.
		if hierarchy.ClassifyTier(rec.FeatureCode).Admin() {
			continue
		}
		if err := batcher.add(ctx, resolver.Resolve(rec)); err != nil {
			return err
		}
	}
}

// nameCounters holds the name pipeline's counters, merged into the run
// stats once both pipelines are done.
type nameCounters struct {
	written   int64
	malformed int64
	filtered  int64
}

func (imp *Importer) runNames(ctx context.Context, counters *nameCounters) error {
	r, err := feed.OpenNames(imp.cfg.NamesPath)
	if err != nil {
		return err
	}
	defer r.Close() //nolint:errcheck
	imp.attachProgress(r.Size(), "names", r.SetProgress)

	batcher := newNameBatcher(imp.st, imp.cfg.BatchSize)
	for {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "importer: names pass cancelled")
		}
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if err := batcher.add(ctx, rec); err != nil {
			return err
		}
	}
	if err := batcher.flush(ctx); err != nil {
		return err
	}

	counters.written = batcher.written
	counters.malformed = r.Malformed()
	counters.filtered = r.Filtered()
	imp.log.Info("names merged",
		zap.Int64("written", counters.written),
		zap.Int64("malformed", counters.malformed),
		zap.Int64("filtered", counters.filtered),
	)
	return nil
}
