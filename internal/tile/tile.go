package tile

import (
	"math"

	"github.com/jcom-dev/htg/internal/tileerr"
	"golang.org/x/exp/mmap"
)

// VoidSample is the in-band sentinel meaning "no data" per §3.
const VoidSample int16 = -32768

// Valid grid side lengths and the file sizes they imply (§3, §6).
const (
	SRTM1Side = 3601
	SRTM3Side = 1201

	srtm1Bytes = 2 * SRTM1Side * SRTM1Side
	srtm3Bytes = 2 * SRTM3Side * SRTM3Side
)

// Rounding selects the grid-sample rounding policy used by SampleNearest.
type Rounding int

const (
	// RoundNearest rounds to the nearest grid point (the default).
	RoundNearest Rounding = iota
	// RoundFloor floors both grid indices, which picks the north-west
	// neighbour (row 0 is the north edge), matching a common
	// pure-implementation's behavior.
	RoundFloor
)

// Tile is a read-only, memory-mapped view of one SRTM height grid.
// A Tile is immutable once constructed and safe for concurrent readers.
type Tile struct {
	id       Identity
	latFloor int
	lonFloor int
	side     int
	r        *mmap.ReaderAt
}

// Open memory-maps the file at path, which must hold id's tile data, and
// infers the grid side from the file's byte length.
func Open(path string, id Identity) (*Tile, error) {
	latFloor, lonFloor, err := id.Floors()
	if err != nil {
		return nil, err
	}

	r, err := mmap.Open(path)
	if err != nil {
		return nil, tileerr.Wrap(tileerr.IoError, "open tile file", err).WithIdentity(string(id))
	}

	side, err := sideForLength(r.Len())
	if err != nil {
		r.Close()
		return nil, err.WithIdentity(string(id))
	}

	return &Tile{id: id, latFloor: latFloor, lonFloor: lonFloor, side: side, r: r}, nil
}

func sideForLength(n int) (int, *tileerr.Error) {
	switch n {
	case srtm1Bytes:
		return SRTM1Side, nil
	case srtm3Bytes:
		return SRTM3Side, nil
	default:
		return 0, tileerr.Newf(tileerr.InvalidFileSize, "tile file is %d bytes, expected %d (SRTM3) or %d (SRTM1)", n, srtm3Bytes, srtm1Bytes)
	}
}

// Close releases the memory mapping. It is safe to call once all readers
// sharing this *Tile are done with it.
func (t *Tile) Close() error {
	if err := t.r.Close(); err != nil {
		return tileerr.Wrap(tileerr.IoError, "close tile mapping", err).WithIdentity(string(t.id))
	}
	return nil
}

// Identity returns the tile's canonical name.
func (t *Tile) Identity() Identity { return t.id }

// Side returns the grid's side length, 1201 or 3601.
func (t *Tile) Side() int { return t.side }

// SizeBytes returns the mapped file's length in bytes.
func (t *Tile) SizeBytes() int { return t.r.Len() }

// SampleAtGrid reads the raw sample at the given row/column, row 0 at the
// north edge, column 0 at the west edge. Void (-32768) is returned as-is.
func (t *Tile) SampleAtGrid(row, col int) (int16, error) {
	if row < 0 || row >= t.side || col < 0 || col >= t.side {
		return 0, tileerr.Newf(tileerr.OutOfBounds, "grid index (%d,%d) outside [0,%d)", row, col, t.side).WithIdentity(string(t.id))
	}
	offset := int64(2 * (row*t.side + col))
	var buf [2]byte
	if _, err := t.r.ReadAt(buf[:], offset); err != nil {
		return 0, tileerr.Wrap(tileerr.IoError, "read sample", err).WithIdentity(string(t.id))
	}
	return int16(uint16(buf[0])<<8 | uint16(buf[1])), nil
}

// fractions validates (lat, lon) lies within this tile's 1x1 footprint and
// returns lat_frac, lon_frac per §4.1/§4.2.
func (t *Tile) fractions(lat, lon float64) (latFrac, lonFrac float64, err error) {
	latFrac = lat - float64(t.latFloor)
	lonFrac = lon - float64(t.lonFloor)
	if latFrac < 0 || latFrac > 1 || lonFrac < 0 || lonFrac > 1 {
		return 0, 0, tileerr.Newf(tileerr.OutOfBounds, "point (%g,%g) outside tile footprint [%d,%d]x[%d,%d]",
			lat, lon, t.latFloor, t.latFloor+1, t.lonFloor, t.lonFloor+1).WithIdentity(string(t.id))
	}
	return latFrac, lonFrac, nil
}

// SampleNearest returns the grid sample closest to (lat, lon) under the
// given rounding policy, per §4.2. The result may be VoidSample; callers
// at the façade layer convert that to an absent value.
func (t *Tile) SampleNearest(lat, lon float64, rounding Rounding) (int16, error) {
	latFrac, lonFrac, err := t.fractions(lat, lon)
	if err != nil {
		return 0, err
	}

	n1 := float64(t.side - 1)
	var row, col int
	switch rounding {
	case RoundFloor:
		row = int(math.Floor((1 - latFrac) * n1))
		col = int(math.Floor(lonFrac * n1))
	default:
		row = int(math.Round((1 - latFrac) * n1))
		col = int(math.Round(lonFrac * n1))
	}
	row = clamp(row, 0, t.side-1)
	col = clamp(col, 0, t.side-1)

	return t.SampleAtGrid(row, col)
}

// SampleInterpolated returns the bilinearly interpolated elevation at
// (lat, lon), per §4.2. ok is false when any of the four surrounding grid
// corners is void, in which case the returned value must be ignored.
func (t *Tile) SampleInterpolated(lat, lon float64) (value float64, ok bool, err error) {
	latFrac, lonFrac, err := t.fractions(lat, lon)
	if err != nil {
		return 0, false, err
	}

	n1 := float64(t.side - 1)
	r := (1 - latFrac) * n1
	c := lonFrac * n1

	r0 := int(math.Floor(r))
	c0 := int(math.Floor(c))
	r0 = clamp(r0, 0, t.side-1)
	c0 = clamp(c0, 0, t.side-1)
	r1 := min(r0+1, t.side-1)
	c1 := min(c0+1, t.side-1)
	wr := r - float64(r0)
	wc := c - float64(c0)

	v00, err := t.SampleAtGrid(r0, c0)
	if err != nil {
		return 0, false, err
	}
	v01, err := t.SampleAtGrid(r0, c1)
	if err != nil {
		return 0, false, err
	}
	v10, err := t.SampleAtGrid(r1, c0)
	if err != nil {
		return 0, false, err
	}
	v11, err := t.SampleAtGrid(r1, c1)
	if err != nil {
		return 0, false, err
	}

	if v00 == VoidSample || v01 == VoidSample || v10 == VoidSample || v11 == VoidSample {
		return 0, false, nil
	}

	v0 := float64(v00) + (float64(v01)-float64(v00))*wc
	v1 := float64(v10) + (float64(v11)-float64(v10))*wc
	return v0 + (v1-v0)*wr, true, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
