// Package preload implements the preload driver (C7): enumerating the
// local tile directory, optionally filtering by bounding boxes, and
// warming the tile cache ahead of first use.
package preload

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jcom-dev/htg/internal/cache"
	"github.com/jcom-dev/htg/internal/tile"
)

// BoundingBox is a closed-interval lat/lon rectangle used to filter which
// tiles get preloaded (§4.6).
type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// intersects reports whether a tile's 1°x1° footprint (south-west corner
// at latFloor, lonFloor) intersects b, treating both as closed intervals.
func (b BoundingBox) intersects(latFloor, lonFloor int) bool {
	tileMinLat, tileMaxLat := float64(latFloor), float64(latFloor+1)
	tileMinLon, tileMaxLon := float64(lonFloor), float64(lonFloor+1)
	return tileMinLat <= b.MaxLat && tileMaxLat >= b.MinLat &&
		tileMinLon <= b.MaxLon && tileMaxLon >= b.MinLon
}

// Stats are the counters returned by a blocking Run (§4.6, §6 "Preload
// statistics").
type Stats struct {
	Matched       int
	Loaded        int
	AlreadyCached int
	Failed        int
	ElapsedMS     int64
}

// Driver enumerates dataDir for tile files and warms the cache for the
// ones that match the requested bounding boxes (§4.6).
type Driver struct {
	dataDir string
	cache   *cache.Cache
}

// NewDriver builds a Driver over the given cache and data directory.
func NewDriver(dataDir string, c *cache.Cache) *Driver {
	return &Driver{dataDir: dataDir, cache: c}
}

// Run enumerates the data directory, filters by boundingBoxes (keeping
// every tile when none are given), and loads each surviving tile into the
// cache via a normal Get. Whether a tile was already resident or freshly
// loaded is distinguished by the cache's hit counter before and after each
// Get; a failed Get increments Failed and does not abort the run (§4.6).
func (d *Driver) Run(ctx context.Context, boundingBoxes []BoundingBox) (*Stats, error) {
	start := time.Now()
	stats := &Stats{}

	entries, err := os.ReadDir(d.dataDir)
	if err != nil {
		return nil, err
	}

	seen := make(map[tile.Identity]bool)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".hgt") && !strings.HasSuffix(name, ".hgt.zip") {
			continue
		}

		id, latFloor, lonFloor, err := tile.ParseIdentity(name)
		if err != nil {
			continue // not a tile filename, ignore
		}
		if seen[id] {
			continue // .hgt and .hgt.zip both present for this identity
		}
		seen[id] = true

		if len(boundingBoxes) > 0 && !anyIntersects(boundingBoxes, latFloor, lonFloor) {
			continue
		}
		stats.Matched++

		hitsBefore := d.cache.Stats().Hits
		h, err := d.cache.Get(ctx, id)
		if err != nil {
			stats.Failed++
			slog.Warn("preload: failed to load tile", "identity", id, "error", err)
			continue
		}
		if d.cache.Stats().Hits > hitsBefore {
			stats.AlreadyCached++
		} else {
			stats.Loaded++
		}
		h.Release()
	}

	stats.ElapsedMS = time.Since(start).Milliseconds()
	return stats, nil
}

func anyIntersects(boxes []BoundingBox, latFloor, lonFloor int) bool {
	for _, b := range boxes {
		if b.intersects(latFloor, lonFloor) {
			return true
		}
	}
	return false
}

// DirEntries lists the tile filenames (.hgt or .hgt.zip) present directly
// under dataDir, for callers that want to report tile files without
// re-implementing the directory walk. Names are matched by suffix only and
// are not checked against the tile-name grammar.
func DirEntries(dataDir string) ([]string, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".hgt") || strings.HasSuffix(e.Name(), ".hgt.zip") {
			names = append(names, filepath.Base(e.Name()))
		}
	}
	return names, nil
}
