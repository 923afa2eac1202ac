// Package cache implements the bounded, concurrent tile cache (§4.3): an
// LRU-evicted handle table fronted by a single-flight loader, so that a
// miss on a given tile identity triggers at most one load no matter how
// many goroutines ask for it concurrently.
//
// The shape is adapted from the teacher's GLO-90 tile cache in
// cmd/import-elevation (container/list-backed LRU plus
// golang.org/x/sync/singleflight), generalized from a GDAL dataset handle
// to the mmap-backed *tile.Tile this module reads.
package cache

import (
	"container/list"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jcom-dev/htg/internal/tile"
	"github.com/jcom-dev/htg/internal/tileerr"
	"golang.org/x/sync/singleflight"
)

// Handle is a shared, reference-counted reference to a loaded tile. Callers
// must call Release when done; the underlying mapping is closed once the
// cache has evicted the entry AND every Handle referencing it has been
// released.
type Handle struct {
	entry *entry
}

// Tile returns the underlying tile for sampling. The returned *tile.Tile is
// valid until Release is called.
func (h *Handle) Tile() *tile.Tile { return h.entry.tile }

// Release drops this handle's reference. It must be called exactly once
// per Handle returned by Get.
func (h *Handle) Release() {
	h.entry.release()
}

// entry is the cache's internal record: the loaded tile plus a reference
// count that keeps the mmap alive past eviction for in-flight readers.
type entry struct {
	identity string
	tile     *tile.Tile

	mu       sync.Mutex
	refs     int
	evicted  bool
	released bool // true once the tile has actually been closed
}

func (e *entry) retain() *Handle {
	e.mu.Lock()
	e.refs++
	e.mu.Unlock()
	return &Handle{entry: e}
}

func (e *entry) release() {
	e.mu.Lock()
	e.refs--
	closeNow := e.refs <= 0 && e.evicted && !e.released
	if closeNow {
		e.released = true
	}
	e.mu.Unlock()
	if closeNow {
		if err := e.tile.Close(); err != nil {
			slog.Warn("tile cache: error closing evicted tile", "identity", e.identity, "error", err)
		}
	}
}

func (e *entry) markEvicted() {
	e.mu.Lock()
	closeNow := e.refs <= 0 && !e.released
	if closeNow {
		e.released = true
	}
	e.evicted = true
	e.mu.Unlock()
	if closeNow {
		if err := e.tile.Close(); err != nil {
			slog.Warn("tile cache: error closing evicted tile", "identity", e.identity, "error", err)
		}
	}
}

// Loader loads a tile by identity when it is not found in the cache. It is
// invoked under the per-identity single-flight guard, so implementations
// need not deduplicate concurrent loads themselves (§4.3, §4.4).
type Loader interface {
	Load(ctx context.Context, id tile.Identity, dataDir string) (*tile.Tile, error)
}

// Stats is a snapshot of the cache's counters (§3 "Cache statistics").
type Stats struct {
	Entries int
	Hits    int64
	Misses  int64
}

// HitRate returns Hits / (Hits + Misses), or 0 when no Gets have occurred.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Cache is the bounded, concurrent tile cache described in §4.3. The zero
// value is not usable; construct with New.
type Cache struct {
	dataDir  string
	capacity int
	loader   Loader

	mu    sync.Mutex
	items map[string]*list.Element // identity -> list element holding *entry
	lru   *list.List

	group singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

// New builds a Cache bounded to capacity live tiles, loading misses through
// loader from files under dataDir (and, if the loader is fetch-capable,
// over the network).
func New(dataDir string, capacity int, loader Loader) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache{
		dataDir:  dataDir,
		capacity: capacity,
		loader:   loader,
		items:    make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Get returns a Handle for id, loading it if necessary. The caller must
// call Handle.Release when finished with the tile.
//
// Concurrent Gets for the same missing identity observe exactly one file
// open: the first caller's goroutine runs the loader under a
// singleflight.Group keyed by identity; every concurrent caller for that
// key blocks on Do and receives the same result (§4.3, §8 invariant 5).
// The cache's own mutex is never held during the loader call, so a slow
// load for one identity never blocks lookups for any other identity (§5).
func (c *Cache) Get(ctx context.Context, id tile.Identity) (*Handle, error) {
	key := string(id)

	if h, ok := c.tryHit(key); ok {
		c.hits.Add(1)
		return h, nil
	}

	c.misses.Add(1)

	result, err, _ := c.group.Do(key, func() (any, error) {
		// Another goroutine's load may have published a handle between our
		// miss above and acquiring the singleflight slot.
		if h, ok := c.tryHit(key); ok {
			return h.entry, nil
		}

		t, loadErr := c.loader.Load(ctx, id, c.dataDir)
		if loadErr != nil {
			return nil, loadErr
		}

		e := &entry{identity: key, tile: t}
		c.publish(key, e)
		return e, nil
	})
	if err != nil {
		return nil, err
	}

	e := result.(*entry)
	return e.retain(), nil
}

func (c *Cache) tryHit(key string) (*Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.lru.MoveToFront(elem)
	e := elem.Value.(*entry)
	return e.retain(), true
}

// publish inserts e into the handle table, evicting the least-recently-used
// entry first if the cache is at capacity.
func (c *Cache) publish(key string, e *entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.items[key]; ok {
		// A concurrent publish for the same key already landed (should not
		// happen under the singleflight guard, but stay safe).
		c.lru.MoveToFront(existing)
		return
	}

	for c.lru.Len() >= c.capacity {
		oldest := c.lru.Back()
		if oldest == nil {
			break
		}
		oldEntry := oldest.Value.(*entry)
		c.lru.Remove(oldest)
		delete(c.items, oldEntry.identity)
		oldEntry.markEvicted()
	}

	elem := c.lru.PushFront(e)
	c.items[key] = elem
}

// Stats returns a snapshot of the cache's counters (§3, §8 invariant 6:
// Hits+Misses always equals the number of completed Get calls).
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	entries := c.lru.Len()
	c.mu.Unlock()
	return Stats{
		Entries: entries,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
}

// Len reports the current number of live cache entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Fetcher resolves a missing tile identity to a local .hgt file, used by
// the default loader only when no local file or zip already exists (§4.4).
// Implemented by internal/fetch.HTTPTransport and internal/fetch.S3Transport;
// declared here to avoid an import cycle between cache and fetch.
type Fetcher interface {
	Fetch(ctx context.Context, id tile.Identity, dataDir string) (string, error)
}

// fileLoader is the default Loader: filesystem first (.hgt, then .hgt.zip),
// falling back to an optional Fetcher only if neither exists (§4.3).
type fileLoader struct {
	fetcher Fetcher
}

// NewFileLoader builds the default Loader described in §4.3: local file,
// then local zip, then (if fetcher is non-nil) a network fetch.
func NewFileLoader(fetcher Fetcher) Loader {
	return &fileLoader{fetcher: fetcher}
}

func (l *fileLoader) Load(ctx context.Context, id tile.Identity, dataDir string) (*tile.Tile, error) {
	hgtPath := filepath.Join(dataDir, id.HGTPath())
	if _, err := os.Stat(hgtPath); err == nil {
		return tile.Open(hgtPath, id)
	}

	zipPath := filepath.Join(dataDir, id.ZipPath())
	if _, err := os.Stat(zipPath); err == nil {
		if err := extractZip(zipPath, hgtPath, id); err != nil {
			return nil, err
		}
		return tile.Open(hgtPath, id)
	}

	if l.fetcher == nil {
		return nil, tileerr.Newf(tileerr.TileNotAvailable, "no local file or zip for tile and no fetcher configured").WithIdentity(string(id))
	}

	fetchStart := time.Now()
	placedPath, err := l.fetcher.Fetch(ctx, id, dataDir)
	if err != nil {
		return nil, err
	}
	slog.Info("tile cache: fetched tile", "identity", id.String(), "elapsed", time.Since(fetchStart))

	return tile.Open(placedPath, id)
}
