package cache

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"

	"github.com/jcom-dev/htg/internal/tile"
	"github.com/jcom-dev/htg/internal/tileerr"
)

// extractZip pulls the single .hgt member out of the zip at zipPath and
// places it at hgtPath using a temp-file-then-rename so concurrent loaders
// never observe a partially written file (§4.3, §4.4).
func extractZip(zipPath, hgtPath string, id tile.Identity) error {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return tileerr.Wrap(tileerr.IoError, "open tile zip", err).WithIdentity(string(id))
	}
	defer zr.Close()

	var member *zip.File
	want := id.HGTPath()
	for _, f := range zr.File {
		if filepath.Base(f.Name) == want {
			member = f
			break
		}
	}
	if member == nil && len(zr.File) == 1 {
		member = zr.File[0]
	}
	if member == nil {
		return tileerr.Newf(tileerr.TileNotAvailable, "zip %s has no member matching %s", zipPath, want).WithIdentity(string(id))
	}

	rc, err := member.Open()
	if err != nil {
		return tileerr.Wrap(tileerr.IoError, "open zip member", err).WithIdentity(string(id))
	}
	defer rc.Close()

	tmp, err := os.CreateTemp(filepath.Dir(hgtPath), ".htg-extract-*.tmp")
	if err != nil {
		return tileerr.Wrap(tileerr.IoError, "create temp file for extraction", err).WithIdentity(string(id))
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := io.Copy(tmp, rc); err != nil {
		tmp.Close()
		return tileerr.Wrap(tileerr.IoError, "write extracted tile", err).WithIdentity(string(id))
	}
	if err := tmp.Close(); err != nil {
		return tileerr.Wrap(tileerr.IoError, "close extracted tile", err).WithIdentity(string(id))
	}

	if err := os.Rename(tmpPath, hgtPath); err != nil {
		// Another loader may have already extracted and renamed into place
		// between our os.Stat miss and this rename; treat that as success.
		if _, statErr := os.Stat(hgtPath); statErr == nil {
			return nil
		}
		return tileerr.Wrap(tileerr.IoError, "rename extracted tile into place", err).WithIdentity(string(id))
	}
	return nil
}
