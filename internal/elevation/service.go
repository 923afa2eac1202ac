// Package elevation implements the service façade (C6): the public
// operation surface bounds-checking coordinates, dispatching to the tile
// cache and reader, and converting void samples to an absent result.
package elevation

import (
	"context"
	"log/slog"

	"github.com/jcom-dev/htg/internal/cache"
	"github.com/jcom-dev/htg/internal/preload"
	"github.com/jcom-dev/htg/internal/tile"
	"github.com/jcom-dev/htg/internal/tileerr"
)

const (
	minLat = -60.0
	maxLat = 60.0
	minLon = -180.0
	maxLon = 180.0
)

// Point is a single query coordinate for the batch operations.
type Point struct {
	Lat float64
	Lon float64
}

// Service is the public façade described in §4.5. Construct with
// NewService or, for the environment-driven path, internal/config.
type Service struct {
	dataDir  string
	cache    *cache.Cache
	rounding tile.Rounding
}

// Option configures a Service built with NewService.
type Option func(*options)

type options struct {
	dataDir   string
	cacheSize int
	loader    cache.Loader
	fetcher   cache.Fetcher
	rounding  tile.Rounding
}

// WithDataDir sets the directory .hgt/.hgt.zip files are read from and
// written to. Required.
func WithDataDir(dir string) Option {
	return func(o *options) { o.dataDir = dir }
}

// WithCacheSize bounds the number of tiles held in memory at once (§4.3).
// Defaults to 100 when unset or non-positive.
func WithCacheSize(n int) Option {
	return func(o *options) { o.cacheSize = n }
}

// WithFetcher wires a remote tile source (HTTP template or S3 transport)
// consulted only when a tile is absent locally (§4.4).
func WithFetcher(f cache.Fetcher) Option {
	return func(o *options) { o.fetcher = f }
}

// WithDefaultRounding sets the rounding policy GetElevation and
// GetElevationsBatch use by default (§6 HTG_ROUNDING).
func WithDefaultRounding(r tile.Rounding) Option {
	return func(o *options) { o.rounding = r }
}

// withLoader overrides the default file loader; exposed for tests.
func withLoader(l cache.Loader) Option {
	return func(o *options) { o.loader = l }
}

// NewService builds a Service per the given options (§4.5).
func NewService(opts ...Option) (*Service, error) {
	o := &options{cacheSize: 100, rounding: tile.RoundNearest}
	for _, opt := range opts {
		opt(o)
	}
	if o.dataDir == "" {
		return nil, tileerr.New(tileerr.IoError, "data directory is required")
	}
	if o.cacheSize <= 0 {
		o.cacheSize = 100
	}

	loader := o.loader
	if loader == nil {
		loader = cache.NewFileLoader(o.fetcher)
	}

	return &Service{
		dataDir:  o.dataDir,
		cache:    cache.New(o.dataDir, o.cacheSize, loader),
		rounding: o.rounding,
	}, nil
}

func validateBounds(lat, lon float64) error {
	if lat < minLat || lat > maxLat {
		return tileerr.Newf(tileerr.OutOfBounds, "latitude %g outside [%g, %g]", lat, minLat, maxLat)
	}
	if lon < minLon || lon > maxLon {
		return tileerr.Newf(tileerr.OutOfBounds, "longitude %g outside [%g, %g]", lon, minLon, maxLon)
	}
	return nil
}

// GetElevation returns the nearest-sample elevation at (lat, lon) under
// rounding, or ok=false if the sample is void (§4.5).
func (s *Service) GetElevation(ctx context.Context, lat, lon float64, rounding tile.Rounding) (value int16, ok bool, err error) {
	if err := validateBounds(lat, lon); err != nil {
		return 0, false, err
	}

	id := tile.LatLonToIdentity(lat, lon)
	h, err := s.cache.Get(ctx, id)
	if err != nil {
		return 0, false, err
	}
	defer h.Release()

	v, err := h.Tile().SampleNearest(lat, lon, rounding)
	if err != nil {
		return 0, false, err
	}
	if v == tile.VoidSample {
		return 0, false, nil
	}
	return v, true, nil
}

// GetElevationInterpolated returns the bilinearly interpolated elevation
// at (lat, lon), or ok=false if any surrounding corner is void (§4.5).
func (s *Service) GetElevationInterpolated(ctx context.Context, lat, lon float64) (value float64, ok bool, err error) {
	if err := validateBounds(lat, lon); err != nil {
		return 0, false, err
	}

	id := tile.LatLonToIdentity(lat, lon)
	h, err := s.cache.Get(ctx, id)
	if err != nil {
		return 0, false, err
	}
	defer h.Release()

	return h.Tile().SampleInterpolated(lat, lon)
}

// GetElevationsBatch returns one nearest-sample elevation per point, in
// order. A point that is out of bounds, misses its tile, or samples void is
// replaced with defaultValue rather than aborting the batch (§4.5).
func (s *Service) GetElevationsBatch(ctx context.Context, points []Point, defaultValue int16, rounding tile.Rounding) []int16 {
	out := make([]int16, len(points))
	for i, p := range points {
		v, ok, err := s.GetElevation(ctx, p.Lat, p.Lon, rounding)
		if err != nil || !ok {
			out[i] = defaultValue
			continue
		}
		out[i] = v
	}
	return out
}

// GetElevationsBatchInterpolated is the bilinear analogue of
// GetElevationsBatch (§4.5).
func (s *Service) GetElevationsBatchInterpolated(ctx context.Context, points []Point, defaultValue float64) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		v, ok, err := s.GetElevationInterpolated(ctx, p.Lat, p.Lon)
		if err != nil || !ok {
			out[i] = defaultValue
			continue
		}
		out[i] = v
	}
	return out
}

// PreloadStats mirrors preload.Stats for callers that only import the
// façade package.
type PreloadStats = preload.Stats

// Preload warms the cache for the tiles intersecting boundingBoxes (or
// every tile found in the data directory, when none are given). In
// blocking mode it returns the final counters; in non-blocking mode it
// starts the work on a background goroutine and returns nil immediately
// (§4.6).
func (s *Service) Preload(ctx context.Context, boundingBoxes []preload.BoundingBox, blocking bool) (*PreloadStats, error) {
	driver := preload.NewDriver(s.dataDir, s.cache)

	if blocking {
		stats, err := driver.Run(ctx, boundingBoxes)
		return stats, err
	}

	go func() {
		if _, err := driver.Run(context.Background(), boundingBoxes); err != nil {
			slog.Error("background preload failed", "error", err)
		}
	}()
	return nil, nil
}

// CacheStats returns the current cache counters (§4.5, §6 "Preload
// statistics" sibling).
func (s *Service) CacheStats() cache.Stats {
	return s.cache.Stats()
}
