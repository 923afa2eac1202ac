package elevation

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/jcom-dev/htg/internal/tile"
	"github.com/jcom-dev/htg/internal/tileerr"
)

// writeFixtureTile writes a uniform-value SRTM3 tile, except for one void
// cell at grid (0,0) when voidCorner is true.
func writeFixtureTile(t *testing.T, dir string, id tile.Identity, value int16, voidCorner bool) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, id.HGTPath()))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()

	buf := make([]byte, 2)
	for row := 0; row < tile.SRTM3Side; row++ {
		for col := 0; col < tile.SRTM3Side; col++ {
			v := value
			if voidCorner && row == 0 && col == 0 {
				v = tile.VoidSample
			}
			binary.BigEndian.PutUint16(buf, uint16(v))
			f.Write(buf)
		}
	}
}

func TestGetElevationRejectsOutOfBounds(t *testing.T) {
	dir := t.TempDir()
	svc, err := NewService(WithDataDir(dir))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	_, _, err = svc.GetElevation(context.Background(), 61, 0, tile.RoundNearest)
	if err == nil {
		t.Fatal("expected OutOfBounds error for latitude 61")
	}
	if kind, ok := tileerr.KindOf(err); !ok || kind != tileerr.OutOfBounds {
		t.Errorf("kind = %v, want OutOfBounds", kind)
	}

	_, _, err = svc.GetElevation(context.Background(), 0, 181, tile.RoundNearest)
	if err == nil {
		t.Fatal("expected OutOfBounds error for longitude 181")
	}
}

func TestGetElevationReturnsSample(t *testing.T) {
	dir := t.TempDir()
	writeFixtureTile(t, dir, "N35E138", 1234, false)

	svc, err := NewService(WithDataDir(dir))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	v, ok, err := svc.GetElevation(context.Background(), 35.5, 138.5, tile.RoundNearest)
	if err != nil {
		t.Fatalf("GetElevation: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true")
	}
	if v != 1234 {
		t.Errorf("GetElevation = %d, want 1234", v)
	}
}

func TestGetElevationVoidIsAbsent(t *testing.T) {
	dir := t.TempDir()
	writeFixtureTile(t, dir, "N35E138", 1234, true)

	svc, err := NewService(WithDataDir(dir))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	// Just inside the north-west corner (lat=35.9999, lon=138) rounds to
	// grid (0,0) of N35E138, the void cell. lat=36 itself would belong to
	// tile N36E138.
	_, ok, err := svc.GetElevation(context.Background(), 35.9999, 138.0, tile.RoundNearest)
	if err != nil {
		t.Fatalf("GetElevation: %v", err)
	}
	if ok {
		t.Error("expected ok=false for a void sample")
	}
}

func TestGetElevationMissingTileReturnsError(t *testing.T) {
	dir := t.TempDir()
	svc, err := NewService(WithDataDir(dir))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	_, _, err = svc.GetElevation(context.Background(), 10.0, 10.0, tile.RoundNearest)
	if err == nil {
		t.Fatal("expected error for a tile with no backing file")
	}
}

func TestGetElevationsBatchSubstitutesDefaultOnFailure(t *testing.T) {
	dir := t.TempDir()
	writeFixtureTile(t, dir, "N35E138", 1234, false)

	svc, err := NewService(WithDataDir(dir))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	points := []Point{
		{Lat: 35.5, Lon: 138.5}, // present
		{Lat: 10.0, Lon: 10.0},  // missing tile
		{Lat: 91.0, Lon: 0.0},   // out of bounds
	}
	got := svc.GetElevationsBatch(context.Background(), points, -1, tile.RoundNearest)
	want := []int16{1234, -1, -1}
	if len(got) != len(want) {
		t.Fatalf("len(got) = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestGetElevationInterpolatedBounds(t *testing.T) {
	dir := t.TempDir()
	svc, err := NewService(WithDataDir(dir))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	_, _, err = svc.GetElevationInterpolated(context.Background(), 0, -181)
	if err == nil {
		t.Fatal("expected OutOfBounds for longitude -181")
	}
}

func TestCacheStatsReflectsHitsAndMisses(t *testing.T) {
	dir := t.TempDir()
	writeFixtureTile(t, dir, "N35E138", 1234, false)

	svc, err := NewService(WithDataDir(dir))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	svc.GetElevation(context.Background(), 35.5, 138.5, tile.RoundNearest)
	svc.GetElevation(context.Background(), 35.6, 138.6, tile.RoundNearest)

	stats := svc.CacheStats()
	if stats.Misses != 1 {
		t.Errorf("Misses = %d, want 1", stats.Misses)
	}
	if stats.Hits != 1 {
		t.Errorf("Hits = %d, want 1", stats.Hits)
	}
}

func TestNewServiceRequiresDataDir(t *testing.T) {
	_, err := NewService()
	if err == nil {
		t.Fatal("expected error when no data directory is configured")
	}
}
