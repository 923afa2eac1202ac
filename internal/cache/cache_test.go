package cache

import (
	"archive/zip"
	"context"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jcom-dev/htg/internal/tile"
	"github.com/jcom-dev/htg/internal/tileerr"
)

// zipUpFixture packs srcPath into a single-member zip at zipPath, with the
// member named memberName.
func zipUpFixture(t *testing.T, srcPath, zipPath, memberName string) error {
	t.Helper()
	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	zf, err := os.Create(zipPath)
	if err != nil {
		return err
	}
	defer zf.Close()

	zw := zip.NewWriter(zf)
	w, err := zw.Create(memberName)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, src); err != nil {
		return err
	}
	return zw.Close()
}

// writeFixtureTile writes a minimal SRTM3 tile file for id under dir.
func writeFixtureTile(t *testing.T, dir string, id tile.Identity) {
	t.Helper()
	path := filepath.Join(dir, id.HGTPath())
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	buf := make([]byte, 2*tile.SRTM3Side*tile.SRTM3Side)
	binary.BigEndian.PutUint16(buf, 42)
	if _, err := f.Write(buf); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// countingLoader wraps the default file loader and counts how many times
// Load actually ran, to verify single-flight deduplication.
type countingLoader struct {
	inner Loader
	calls atomic.Int64
	delay time.Duration
}

func (c *countingLoader) Load(ctx context.Context, id tile.Identity, dataDir string) (*tile.Tile, error) {
	c.calls.Add(1)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	return c.inner.Load(ctx, id, dataDir)
}

func TestCacheGetLoadsAndHits(t *testing.T) {
	dir := t.TempDir()
	id := tile.Identity("N35E138")
	writeFixtureTile(t, dir, id)

	loader := &countingLoader{inner: NewFileLoader(nil)}
	c := New(dir, 4, loader)

	h1, err := c.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	h1.Release()

	h2, err := c.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	h2.Release()

	if loader.calls.Load() != 1 {
		t.Errorf("loader called %d times, want 1 (second Get should be a cache hit)", loader.calls.Load())
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("stats = %+v, want 1 hit and 1 miss", stats)
	}
}

func TestCacheGetDeduplicatesConcurrentLoads(t *testing.T) {
	dir := t.TempDir()
	id := tile.Identity("N35E138")
	writeFixtureTile(t, dir, id)

	loader := &countingLoader{inner: NewFileLoader(nil), delay: 20 * time.Millisecond}
	c := New(dir, 4, loader)

	const n = 10
	var wg sync.WaitGroup
	handles := make([]*Handle, n)
	errs := make([]error, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			handles[i], errs[i] = c.Get(context.Background(), id)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("Get[%d]: %v", i, err)
		}
		handles[i].Release()
	}

	if loader.calls.Load() != 1 {
		t.Errorf("loader called %d times under concurrent load, want exactly 1", loader.calls.Load())
	}
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	dir := t.TempDir()
	ids := []tile.Identity{"N35E138", "N36E138", "N37E138", "N38E138"}
	for _, id := range ids {
		writeFixtureTile(t, dir, id)
	}

	c := New(dir, 2, NewFileLoader(nil))

	h1, err := c.Get(context.Background(), ids[0])
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	h1.Release()

	h2, err := c.Get(context.Background(), ids[1])
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	h2.Release()

	// Loading a third distinct tile should evict ids[0] (least recently used).
	h3, err := c.Get(context.Background(), ids[2])
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	h3.Release()

	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}

	loader := &countingLoader{inner: NewFileLoader(nil)}
	c2 := New(dir, 2, loader)
	for _, id := range ids[:3] {
		h, err := c2.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("Get(%s): %v", id, err)
		}
		h.Release()
	}
	if _, err := c2.Get(context.Background(), ids[0]); err != nil {
		t.Fatalf("Get(%s) after eviction: %v", ids[0], err)
	}
	if loader.calls.Load() != 4 {
		t.Errorf("loader called %d times, want 4 (evicted tile reloaded)", loader.calls.Load())
	}
}

func TestCacheInFlightHandleSurvivesEviction(t *testing.T) {
	dir := t.TempDir()
	ids := []tile.Identity{"N35E138", "N36E138", "N37E138"}
	for _, id := range ids {
		writeFixtureTile(t, dir, id)
	}

	c := New(dir, 1, NewFileLoader(nil))

	h1, err := c.Get(context.Background(), ids[0])
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	// ids[0]'s handle is still held while ids[1] evicts it from the LRU.
	h2, err := c.Get(context.Background(), ids[1])
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	h2.Release()

	v, err := h1.Tile().SampleAtGrid(0, 0)
	if err != nil {
		t.Fatalf("SampleAtGrid on evicted-but-held tile: %v", err)
	}
	if v != 42 {
		t.Errorf("SampleAtGrid = %d, want 42", v)
	}
	h1.Release()
}

func TestCacheMissWithoutFetcherReturnsTileNotAvailable(t *testing.T) {
	dir := t.TempDir()
	c := New(dir, 4, NewFileLoader(nil))

	_, err := c.Get(context.Background(), tile.Identity("N00E000"))
	if err == nil {
		t.Fatal("expected error for a tile with no local file and no fetcher")
	}
	if kind, ok := tileerr.KindOf(err); !ok || kind != tileerr.TileNotAvailable {
		t.Errorf("error kind = %v, want TileNotAvailable", kind)
	}
}

func TestCacheExtractsZip(t *testing.T) {
	dir := t.TempDir()
	id := tile.Identity("N35E138")

	srcDir := t.TempDir()
	writeFixtureTile(t, srcDir, id)

	zipPath := filepath.Join(dir, id.ZipPath())
	if err := zipUpFixture(t, filepath.Join(srcDir, id.HGTPath()), zipPath, id.HGTPath()); err != nil {
		t.Fatalf("zipUpFixture: %v", err)
	}

	c := New(dir, 4, NewFileLoader(nil))
	h, err := c.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer h.Release()

	v, err := h.Tile().SampleAtGrid(0, 0)
	if err != nil {
		t.Fatalf("SampleAtGrid: %v", err)
	}
	if v != 42 {
		t.Errorf("SampleAtGrid = %d, want 42", v)
	}
}
