// Package config builds an elevation.Service from the HTG_* environment
// variables (§6), loading a local .env file first when present — the same
// godotenv convention the pack's phileasgo config loader uses for local
// development.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/jcom-dev/htg/internal/cache"
	"github.com/jcom-dev/htg/internal/elevation"
	"github.com/jcom-dev/htg/internal/fetch"
	"github.com/jcom-dev/htg/internal/tile"
)

func init() {
	_ = godotenv.Load(".env.local", ".env")
}

// LoadLogLevel parses HTG_LOG_LEVEL (default "info") into a slog.Level,
// for wiring a process-wide structured logger (§2 "Logging").
func LoadLogLevel() slog.Level {
	switch strings.ToLower(os.Getenv("HTG_LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewServiceFromEnv builds an elevation.Service from the HTG_* environment
// variables documented in §6: data directory, cache size, rounding
// default, and an optional fetcher (HTTP template or S3).
func NewServiceFromEnv(ctx context.Context) (*elevation.Service, error) {
	dataDir := os.Getenv("HTG_DATA_DIR")
	if dataDir == "" {
		return nil, fmt.Errorf("HTG_DATA_DIR is required")
	}

	opts := []elevation.Option{elevation.WithDataDir(dataDir)}

	if raw := os.Getenv("HTG_CACHE_SIZE"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("HTG_CACHE_SIZE: %w", err)
		}
		opts = append(opts, elevation.WithCacheSize(n))
	}

	if raw := os.Getenv("HTG_ROUNDING"); raw != "" {
		rounding, err := parseRounding(raw)
		if err != nil {
			return nil, err
		}
		opts = append(opts, elevation.WithDefaultRounding(rounding))
	}

	fetcher, err := fetcherFromEnv(ctx)
	if err != nil {
		return nil, err
	}
	if fetcher != nil {
		opts = append(opts, elevation.WithFetcher(fetcher))
	}

	return elevation.NewService(opts...)
}

func parseRounding(raw string) (tile.Rounding, error) {
	switch strings.ToLower(raw) {
	case "nearest", "":
		return tile.RoundNearest, nil
	case "floor":
		return tile.RoundFloor, nil
	default:
		return 0, fmt.Errorf("HTG_ROUNDING: unknown value %q (want \"nearest\" or \"floor\")", raw)
	}
}

func fetcherFromEnv(ctx context.Context) (cache.Fetcher, error) {
	source := os.Getenv("HTG_DOWNLOAD_SOURCE")
	gzipEncoded := os.Getenv("HTG_DOWNLOAD_GZIP") == "true"

	if source == "s3" {
		bucket := os.Getenv("HTG_S3_BUCKET")
		if bucket == "" {
			return nil, fmt.Errorf("HTG_S3_BUCKET is required when HTG_DOWNLOAD_SOURCE=s3")
		}
		prefix := os.Getenv("HTG_S3_PREFIX")
		region := os.Getenv("HTG_S3_REGION")
		return fetch.NewS3Transport(ctx, bucket, prefix, region, gzipEncoded)
	}

	urlTemplate := os.Getenv("HTG_DOWNLOAD_URL")
	if source != "" {
		if tmpl, ok := fetch.NamedTemplate(source); ok {
			urlTemplate = tmpl
		} else if urlTemplate == "" {
			return nil, fmt.Errorf("HTG_DOWNLOAD_SOURCE: unknown named source %q", source)
		}
	}
	if urlTemplate == "" {
		// No fetcher configured: the cache will only ever serve tiles
		// already present on disk (§4.3).
		return nil, nil
	}

	return fetch.NewHTTPTransport(urlTemplate, gzipEncoded, 60*time.Second), nil
}
