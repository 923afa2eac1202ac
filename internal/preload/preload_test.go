package preload

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/jcom-dev/htg/internal/cache"
	"github.com/jcom-dev/htg/internal/tile"
)

func writeFixture(t *testing.T, dir string, id tile.Identity) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, id.HGTPath()))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	buf := make([]byte, 2*tile.SRTM3Side*tile.SRTM3Side)
	binary.BigEndian.PutUint16(buf, 7)
	f.Write(buf)
}

func TestRunLoadsAllTilesWithoutBoundingBoxes(t *testing.T) {
	dir := t.TempDir()
	ids := []tile.Identity{"N35E138", "N36E139", "S10W050"}
	for _, id := range ids {
		writeFixture(t, dir, id)
	}
	// A non-tile file should be ignored.
	os.WriteFile(filepath.Join(dir, "README.txt"), []byte("hi"), 0o644)

	c := cache.New(dir, 10, cache.NewFileLoader(nil))
	d := NewDriver(dir, c)

	stats, err := d.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Matched != 3 {
		t.Errorf("Matched = %d, want 3", stats.Matched)
	}
	if stats.Loaded != 3 {
		t.Errorf("Loaded = %d, want 3", stats.Loaded)
	}
	if stats.Failed != 0 {
		t.Errorf("Failed = %d, want 0", stats.Failed)
	}
}

func TestRunFiltersByBoundingBox(t *testing.T) {
	dir := t.TempDir()
	ids := []tile.Identity{"N35E138", "N36E139", "S10W050"}
	for _, id := range ids {
		writeFixture(t, dir, id)
	}

	c := cache.New(dir, 10, cache.NewFileLoader(nil))
	d := NewDriver(dir, c)

	box := BoundingBox{MinLat: 35, MaxLat: 37, MinLon: 138, MaxLon: 140}
	stats, err := d.Run(context.Background(), []BoundingBox{box})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Matched != 2 {
		t.Errorf("Matched = %d, want 2 (N35E138, N36E139 only)", stats.Matched)
	}
}

func TestRunCountsAlreadyCached(t *testing.T) {
	dir := t.TempDir()
	id := tile.Identity("N35E138")
	writeFixture(t, dir, id)

	c := cache.New(dir, 10, cache.NewFileLoader(nil))
	h, err := c.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("warm Get: %v", err)
	}
	h.Release()

	d := NewDriver(dir, c)
	stats, err := d.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.AlreadyCached != 1 {
		t.Errorf("AlreadyCached = %d, want 1", stats.AlreadyCached)
	}
	if stats.Loaded != 0 {
		t.Errorf("Loaded = %d, want 0", stats.Loaded)
	}
}

func TestBoundingBoxIntersectsClosedInterval(t *testing.T) {
	b := BoundingBox{MinLat: 35, MaxLat: 36, MinLon: 138, MaxLon: 139}
	if !b.intersects(35, 138) {
		t.Error("expected exact-match tile to intersect")
	}
	if !b.intersects(34, 137) {
		t.Error("expected diagonal tile sharing only a corner point to intersect (closed interval)")
	}
	if b.intersects(40, 150) {
		t.Error("expected far-away tile to not intersect")
	}
}

func TestDirEntriesListsOnlyTileFiles(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "N35E138")
	os.WriteFile(filepath.Join(dir, "N36E138.hgt.zip"), []byte("fake zip"), 0o644)
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o644)

	names, err := DirEntries(dir)
	if err != nil {
		t.Fatalf("DirEntries: %v", err)
	}
	if len(names) != 2 {
		t.Errorf("DirEntries = %v, want 2 entries", names)
	}
}
