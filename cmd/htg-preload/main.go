// Package main provides the htg-preload CLI for warming the tile cache
// ahead of first use.
//
// Usage:
//
//	htg-preload                                   # preload every tile under HTG_DATA_DIR
//	htg-preload --bbox 35,-10,45,10               # preload only tiles touching the box
//	htg-preload --bbox 35,-10,45,10 --bbox 0,0,5,5 # multiple boxes, any match loads the tile
//	htg-preload --verbose                          # debug logging
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jcom-dev/htg/internal/config"
	"github.com/jcom-dev/htg/internal/elevation"
	"github.com/jcom-dev/htg/internal/preload"
)

var (
	bboxFlags []string
	verbose   bool
	asJSON    bool
	svc       *elevation.Service
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "htg-preload",
		Short: "Warm the SRTM tile cache",
		Long: `Warm the tile cache by loading .hgt/.hgt.zip files from HTG_DATA_DIR.

Without --bbox every tile found in the data directory is loaded. Each
--bbox restricts the run to tiles whose 1x1 degree footprint intersects
minLat,minLon,maxLat,maxLon; passing --bbox more than once loads the
union of all boxes.`,
		RunE: runPreload,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := config.LoadLogLevel()
			if verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			slog.SetDefault(logger)

			var err error
			svc, err = config.NewServiceFromEnv(context.Background())
			if err != nil {
				return fmt.Errorf("build elevation service: %w", err)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringArrayVar(&bboxFlags, "bbox", nil,
		"minLat,minLon,maxLat,maxLon; repeatable")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "Print the final stats as JSON")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runPreload(cmd *cobra.Command, args []string) error {
	boxes, err := parseBoundingBoxes(bboxFlags)
	if err != nil {
		return err
	}

	fmt.Println("SRTM Tile Preload")
	fmt.Println("=================")
	if len(boxes) == 0 {
		fmt.Println("Scope: entire data directory")
	} else {
		fmt.Printf("Scope: %d bounding box(es)\n", len(boxes))
	}
	fmt.Println()

	start := time.Now()
	stats, err := svc.Preload(cmd.Context(), boxes, true)
	if err != nil {
		return fmt.Errorf("preload: %w", err)
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	fmt.Println("Complete.")
	fmt.Printf("Matched:        %d\n", stats.Matched)
	fmt.Printf("Loaded:         %d\n", stats.Loaded)
	fmt.Printf("Already cached: %d\n", stats.AlreadyCached)
	fmt.Printf("Failed:         %d\n", stats.Failed)
	fmt.Printf("Elapsed:        %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}

// parseBoundingBoxes parses each "minLat,minLon,maxLat,maxLon" flag value
// into a preload.BoundingBox.
func parseBoundingBoxes(raw []string) ([]preload.BoundingBox, error) {
	boxes := make([]preload.BoundingBox, 0, len(raw))
	for _, r := range raw {
		parts := strings.Split(r, ",")
		if len(parts) != 4 {
			return nil, fmt.Errorf("--bbox %q: want minLat,minLon,maxLat,maxLon", r)
		}
		vals := make([]float64, 4)
		for i, p := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return nil, fmt.Errorf("--bbox %q: %w", r, err)
			}
			vals[i] = v
		}
		boxes = append(boxes, preload.BoundingBox{
			MinLat: vals[0], MinLon: vals[1], MaxLat: vals[2], MaxLon: vals[3],
		})
	}
	return boxes, nil
}
