// Package tile implements the SRTM binary tile format: the coordinate to
// filename codec (this file) and the memory-mapped sample reader (tile.go).
package tile

import (
	"fmt"
	"math"

	"github.com/jcom-dev/htg/internal/tileerr"
)

// Identity is the canonical SRTM tile name, e.g. "N35E138". It carries no
// path or extension; callers append ".hgt" or ".hgt.zip" as needed.
type Identity string

// LatLonToIdentity maps a coordinate to the tile identity that contains it,
// per §4.1: lat_floor = floor(lat), lon_floor = floor(lon), with N/S and
// E/W prefixes chosen by sign and zero-padded widths of 2 and 3 digits.
func LatLonToIdentity(lat, lon float64) Identity {
	latFloor := int(math.Floor(lat))
	lonFloor := int(math.Floor(lon))
	return identityFromFloors(latFloor, lonFloor)
}

func identityFromFloors(latFloor, lonFloor int) Identity {
	latPrefix := "N"
	if latFloor < 0 {
		latPrefix = "S"
	}
	lonPrefix := "E"
	if lonFloor < 0 {
		lonPrefix = "W"
	}
	return Identity(fmt.Sprintf("%s%02d%s%03d", latPrefix, abs(latFloor), lonPrefix, abs(lonFloor)))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Floors returns the (lat_floor, lon_floor) pair that is this identity's
// semantic value, for callers that only need the south-west corner.
func (id Identity) Floors() (latFloor, lonFloor int, err error) {
	return parseIdentity(string(id))
}

// String returns the identity as its canonical name.
func (id Identity) String() string { return string(id) }

// HGTPath returns the identity with the ".hgt" suffix appended.
func (id Identity) HGTPath() string { return string(id) + ".hgt" }

// ZipPath returns the identity with the ".hgt.zip" suffix appended.
func (id Identity) ZipPath() string { return string(id) + ".hgt.zip" }

// ParseIdentity validates name against the §6 grammar and returns its
// canonical Identity and the (lat_floor, lon_floor) pair it encodes. The
// ".hgt" or ".hgt.zip" suffix, if present, is stripped before parsing.
func ParseIdentity(name string) (Identity, int, int, error) {
	base := stripSuffix(name)
	if len(base) != 7 {
		return "", 0, 0, tileerr.Newf(tileerr.InvalidFilename, "name %q: tile name must be exactly 7 characters", base)
	}
	latFloor, lonFloor, err := parseIdentity(base)
	if err != nil {
		return "", 0, 0, err
	}
	return Identity(base), latFloor, lonFloor, nil
}

func stripSuffix(name string) string {
	const zipSuffix = ".hgt.zip"
	const hgtSuffix = ".hgt"
	if len(name) > len(zipSuffix) && name[len(name)-len(zipSuffix):] == zipSuffix {
		return name[:len(name)-len(zipSuffix)]
	}
	if len(name) > len(hgtSuffix) && name[len(name)-len(hgtSuffix):] == hgtSuffix {
		return name[:len(name)-len(hgtSuffix)]
	}
	return name
}

// parseIdentity implements the §6 grammar: a name of length >= 7 beginning
// with 'N'|'S' at position 0 and 'E'|'W' at position 3, digits at 1-2 and
// 4-6.
func parseIdentity(name string) (latFloor, lonFloor int, err error) {
	if len(name) < 7 {
		return 0, 0, tileerr.Newf(tileerr.InvalidFilename, "name %q shorter than 7 characters", name)
	}

	var latSign, lonSign int
	switch name[0] {
	case 'N':
		latSign = 1
	case 'S':
		latSign = -1
	default:
		return 0, 0, tileerr.Newf(tileerr.InvalidFilename, "name %q: byte 0 must be 'N' or 'S'", name)
	}

	switch name[3] {
	case 'E':
		lonSign = 1
	case 'W':
		lonSign = -1
	default:
		return 0, 0, tileerr.Newf(tileerr.InvalidFilename, "name %q: byte 3 must be 'E' or 'W'", name)
	}

	latDigits, ok := digits(name[1:3])
	if !ok {
		return 0, 0, tileerr.Newf(tileerr.InvalidFilename, "name %q: latitude field is not two digits", name)
	}
	lonDigits, ok := digits(name[4:7])
	if !ok {
		return 0, 0, tileerr.Newf(tileerr.InvalidFilename, "name %q: longitude field is not three digits", name)
	}

	return latSign * latDigits, lonSign * lonDigits, nil
}

func digits(s string) (int, bool) {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}
