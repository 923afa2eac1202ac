// Package fetch implements the optional remote tile fetcher (C5): an HTTP
// template transport and an S3 transport, both producing a local `.hgt`
// file for a missing tile identity under the cache's data directory.
package fetch

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jcom-dev/htg/internal/tile"
	"github.com/jcom-dev/htg/internal/tileerr"
)

// Built-in URL templates selected by HTG_DOWNLOAD_SOURCE (§6).
const (
	templateArdupilot      = "https://terrain.ardupilot.org/{continent}/{filename}.hgt"
	templateArdupilotSRTM1 = "https://terrain.ardupilot.org/SRTM1/{continent}/{filename}.hgt"
	templateArdupilotSRTM3 = "https://terrain.ardupilot.org/SRTM3/{continent}/{filename}.hgt"
)

// NamedTemplate resolves one of the built-in named sources to its URL
// template, reporting false for unknown names (including "s3", which is
// handled by the S3 transport instead).
func NamedTemplate(name string) (string, bool) {
	switch name {
	case "ardupilot":
		return templateArdupilot, true
	case "ardupilot-srtm1":
		return templateArdupilotSRTM1, true
	case "ardupilot-srtm3":
		return templateArdupilotSRTM3, true
	default:
		return "", false
	}
}

// HTTPTransport fetches tiles over HTTP from a URL template instantiated
// per tile identity (§4.4, §6 "URL template").
type HTTPTransport struct {
	Template string
	Gzip     bool
	Timeout  time.Duration
	Client   *http.Client
}

// NewHTTPTransport builds an HTTPTransport with a default client and a
// 60-second timeout when timeout is zero.
func NewHTTPTransport(urlTemplate string, gzipEncoded bool, timeout time.Duration) *HTTPTransport {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPTransport{
		Template: urlTemplate,
		Gzip:     gzipEncoded,
		Timeout:  timeout,
		Client:   &http.Client{Timeout: timeout},
	}
}

// Fetch implements cache.Fetcher: it resolves the URL for id, downloads the
// body to a temp file under dataDir, decompresses if configured, and
// atomically places the result at {dataDir}/{identity}.hgt.
func (t *HTTPTransport) Fetch(ctx context.Context, id tile.Identity, dataDir string) (string, error) {
	url, err := instantiateTemplate(t.Template, id)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", tileerr.Wrap(tileerr.DownloadFailed, "build request", err).WithIdentity(string(id))
	}

	resp, err := t.Client.Do(req)
	if err != nil {
		return "", tileerr.Wrap(tileerr.DownloadFailed, "GET "+url, err).WithIdentity(string(id))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", tileerr.Newf(tileerr.DownloadFailed, "GET %s: status %d", url, resp.StatusCode).WithIdentity(string(id))
	}

	return placeDownload(resp.Body, dataDir, id, t.Gzip)
}

// instantiateTemplate substitutes {filename}, {lat_prefix}, {lat},
// {lon_prefix}, {lon}, {continent} in tmpl for id's coordinates (§6).
func instantiateTemplate(tmpl string, id tile.Identity) (string, error) {
	latFloor, lonFloor, err := id.Floors()
	if err != nil {
		return "", err
	}

	latPrefix, lat := "N", latFloor
	if latFloor < 0 {
		latPrefix, lat = "S", -latFloor
	}
	lonPrefix, lon := "E", lonFloor
	if lonFloor < 0 {
		lonPrefix, lon = "W", -lonFloor
	}

	r := strings.NewReplacer(
		"{filename}", id.String(),
		"{lat_prefix}", latPrefix,
		"{lat}", fmt.Sprintf("%02d", lat),
		"{lon_prefix}", lonPrefix,
		"{lon}", fmt.Sprintf("%03d", lon),
		"{continent}", continentFor(latFloor, lonFloor),
	)
	return r.Replace(tmpl), nil
}

// placeDownload writes body to a temp file in dataDir, optionally
// gunzipping it, then renames it into place as {identity}.hgt. The
// temp-file-then-rename sequence matches the teacher's own safe-download
// pattern in cmd/seed-geodata (§4.4).
func placeDownload(body io.Reader, dataDir string, id tile.Identity, gzipEncoded bool) (string, error) {
	finalPath := filepath.Join(dataDir, id.HGTPath())

	tmp, err := os.CreateTemp(dataDir, ".htg-download-*.tmp")
	if err != nil {
		return "", tileerr.Wrap(tileerr.IoError, "create temp download file", err).WithIdentity(string(id))
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	var src io.Reader = body
	if gzipEncoded {
		gz, err := gzip.NewReader(body)
		if err != nil {
			tmp.Close()
			return "", tileerr.Wrap(tileerr.DownloadFailed, "open gzip stream", err).WithIdentity(string(id))
		}
		defer gz.Close()
		src = gz
	}

	written, err := io.Copy(tmp, src)
	if err != nil {
		tmp.Close()
		return "", tileerr.Wrap(tileerr.DownloadFailed, "write downloaded tile", err).WithIdentity(string(id))
	}
	if err := tmp.Close(); err != nil {
		return "", tileerr.Wrap(tileerr.IoError, "close downloaded tile", err).WithIdentity(string(id))
	}
	if written == 0 {
		return "", tileerr.Newf(tileerr.DownloadFailed, "downloaded zero bytes").WithIdentity(string(id))
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", tileerr.Wrap(tileerr.IoError, "rename downloaded tile into place", err).WithIdentity(string(id))
	}
	return finalPath, nil
}

// parseTimeoutSeconds parses a seconds string into a time.Duration,
// returning zero (let the caller apply its own default) for an empty or
// invalid value.
func parseTimeoutSeconds(s string) time.Duration {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}
