package retrieval

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/roverlens/marsphotos/pkg/storage"
)

// Source tells the caller where a result came from.
type Source string

const (
	SourceCache  Source = "cache"
	SourceOrigin Source = "origin"
)

// Result is the answer to one search.
type Result struct {
	Source Source
	Photos []storage.ImageRecord
}

// Fetcher retrieves photos for a normalized query from the origin API.
type Fetcher interface {
	Fetch(ctx context.Context, q Query) ([]storage.ImageRecord, error)
}

// Recorder receives cache and origin counters. metrics.Metrics implements it.
type Recorder interface {
	CacheHit()
	CacheMiss()
	OriginFailure()
	StoreWriteFailure()
	ObserveOriginFetch(d time.Duration)
}

// Reporter forwards errors that are logged but not returned.
type Reporter interface {
	CaptureError(err error, component string)
}

// Options tune a Retriever. The zero value logs nothing and surfaces origin
// failures.
type Options struct {
	// DegradeOnOriginError turns origin failures into an empty origin result.
	DegradeOnOriginError bool
	Logger               *zap.Logger
	Metrics              Recorder
	Reporter             Reporter
}

// Retriever answers searches from the cache store, falling back to the origin
// on a miss and persisting what it fetched. It holds no per-request state and
// is safe for concurrent use.
type Retriever struct {
	store    storage.Repository
	fetcher  Fetcher
	degrade  bool
	logger   *zap.Logger
	metrics  Recorder
	reporter Reporter
}

// New wires a Retriever to its store and origin.
func New(store storage.Repository, fetcher Fetcher, opts Options) *Retriever {
	r := &Retriever{
		store:    store,
		fetcher:  fetcher,
		degrade:  opts.DegradeOnOriginError,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		reporter: opts.Reporter,
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.metrics == nil {
		r.metrics = nopRecorder{}
	}
	if r.reporter == nil {
		r.reporter = nopReporter{}
	}
	return r
}

// Retrieve normalizes raw, answers it from the cache when any record matches,
// and otherwise fetches from the origin and caches the result. A failed cache
// write does not fail the search.
func (r *Retriever) Retrieve(ctx context.Context, raw RawQuery) (Result, error) {
	q, err := Normalize(raw)
	if err != nil {
		return Result{}, err
	}
	log := r.logger.With(queryFields(q)...)

	cached, err := r.store.Lookup(ctx, q.Filter())
	if err != nil {
		return Result{}, fmt.Errorf("cache lookup: %w", err)
	}
	if len(cached) > 0 {
		r.metrics.CacheHit()
		log.Debug("cache hit", zap.Int("photos", len(cached)))
		return Result{Source: SourceCache, Photos: cached}, nil
	}
	r.metrics.CacheMiss()
	log.Debug("cache miss")

	start := time.Now()
	photos, err := r.fetcher.Fetch(ctx, q)
	r.metrics.ObserveOriginFetch(time.Since(start))
	if err != nil {
		r.metrics.OriginFailure()
		if r.degrade {
			log.Warn("origin fetch failed, returning empty result", zap.Error(err))
			return Result{Source: SourceOrigin, Photos: []storage.ImageRecord{}}, nil
		}
		return Result{}, fmt.Errorf("origin fetch: %w", err)
	}
	if len(photos) == 0 {
		log.Info("origin returned no photos")
		return Result{Source: SourceOrigin, Photos: []storage.ImageRecord{}}, nil
	}

	// Write failures are logged and reported, never returned.
	if n, err := r.store.InsertMany(ctx, photos); err != nil {
		r.metrics.StoreWriteFailure()
		r.reporter.CaptureError(err, "retrieval")
		log.Error("cache write failed", zap.Int("inserted", n), zap.Error(err))
	} else {
		log.Info("cached origin photos", zap.Int("photos", n))
	}
	return Result{Source: SourceOrigin, Photos: photos}, nil
}

func queryFields(q Query) []zap.Field {
	fields := []zap.Field{zap.String("rover", q.Rover), zap.Int("page", q.Page)}
	if q.Sol != nil {
		fields = append(fields, zap.Int("sol", *q.Sol))
	} else {
		fields = append(fields, zap.String("earth_date", q.EarthDate))
	}
	if q.Camera != "" {
		fields = append(fields, zap.String("camera", q.Camera))
	}
	return fields
}

type nopRecorder struct{}

func (nopRecorder) CacheHit()                        {}
func (nopRecorder) CacheMiss()                       {}
func (nopRecorder) OriginFailure()                   {}
func (nopRecorder) StoreWriteFailure()               {}
func (nopRecorder) ObserveOriginFetch(time.Duration) {}

type nopReporter struct{}

func (nopReporter) CaptureError(error, string) {}
