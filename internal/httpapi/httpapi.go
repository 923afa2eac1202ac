// Package httpapi implements the thin HTTP adaptor (A4) in front of
// internal/elevation: request parsing, response encoding, and mapping
// tileerr.Kind values onto HTTP status codes. Routing and middleware live
// in cmd/htg-server.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/jcom-dev/htg/internal/elevation"
	"github.com/jcom-dev/htg/internal/preload"
	"github.com/jcom-dev/htg/internal/tile"
	"github.com/jcom-dev/htg/internal/tileerr"
)

// ErrorResponse is the JSON body returned for any non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// API bundles the elevation façade behind the route handlers.
type API struct {
	svc *elevation.Service
}

// New builds an API over svc.
func New(svc *elevation.Service) *API {
	return &API{svc: svc}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	msg := message
	if err != nil {
		msg = message + ": " + err.Error()
	}
	respondJSON(w, status, ErrorResponse{Error: http.StatusText(status), Message: msg, Code: status})
}

// statusForKind maps a tileerr.Kind onto an HTTP status (§7).
func statusForKind(kind tileerr.Kind) int {
	switch kind {
	case tileerr.OutOfBounds, tileerr.InvalidFilename:
		return http.StatusBadRequest
	case tileerr.TileNotAvailable:
		return http.StatusNotFound
	case tileerr.InvalidFileSize, tileerr.DownloadFailed, tileerr.IoError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondServiceError(w http.ResponseWriter, err error) {
	if kind, ok := tileerr.KindOf(err); ok {
		respondError(w, statusForKind(kind), string(kind), err)
		return
	}
	respondError(w, http.StatusInternalServerError, "internal_error", err)
}

// Health handles GET /health.
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetElevation handles GET /v1/elevation?lat=..&lon=..&rounding=..&interpolated=.
func (a *API) GetElevation(w http.ResponseWriter, r *http.Request) {
	lat, err := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err)
		return
	}
	lon, err := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err)
		return
	}

	if r.URL.Query().Get("interpolated") == "true" {
		value, ok, err := a.svc.GetElevationInterpolated(r.Context(), lat, lon)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"lat": lat, "lon": lon, "elevation": value, "ok": ok})
		return
	}

	rounding, err := parseRounding(r.URL.Query().Get("rounding"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err)
		return
	}
	value, ok, err := a.svc.GetElevation(r.Context(), lat, lon, rounding)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"lat": lat, "lon": lon, "elevation": value, "ok": ok})
}

type pointJSON struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type elevationsBatchRequest struct {
	Points       []pointJSON `json:"points"`
	Default      float64     `json:"default"`
	Rounding     string      `json:"rounding"`
	Interpolated bool        `json:"interpolated"`
}

type elevationsBatchResponse struct {
	Elevations []float64 `json:"elevations"`
}

// GetElevationsBatch handles POST /v1/elevations.
func (a *API) GetElevationsBatch(w http.ResponseWriter, r *http.Request) {
	var req elevationsBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err)
		return
	}

	points := make([]elevation.Point, len(req.Points))
	for i, p := range req.Points {
		points[i] = elevation.Point{Lat: p.Lat, Lon: p.Lon}
	}

	if req.Interpolated {
		values := a.svc.GetElevationsBatchInterpolated(r.Context(), points, req.Default)
		respondJSON(w, http.StatusOK, elevationsBatchResponse{Elevations: values})
		return
	}

	rounding, err := parseRounding(req.Rounding)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err)
		return
	}
	values := a.svc.GetElevationsBatch(r.Context(), points, int16(req.Default), rounding)
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	respondJSON(w, http.StatusOK, elevationsBatchResponse{Elevations: out})
}

type boundingBoxJSON struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
}

type preloadRequest struct {
	BoundingBoxes []boundingBoxJSON `json:"bounding_boxes"`
	Blocking      bool              `json:"blocking"`
}

// Preload handles POST /v1/preload.
func (a *API) Preload(w http.ResponseWriter, r *http.Request) {
	var req preloadRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", err)
			return
		}
	}

	boxes := make([]preload.BoundingBox, len(req.BoundingBoxes))
	for i, b := range req.BoundingBoxes {
		boxes[i] = preload.BoundingBox{MinLat: b.MinLat, MaxLat: b.MaxLat, MinLon: b.MinLon, MaxLon: b.MaxLon}
	}

	stats, err := a.svc.Preload(r.Context(), boxes, req.Blocking)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if stats == nil {
		respondJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// CacheStats handles GET /v1/cache/stats.
func (a *API) CacheStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, a.svc.CacheStats())
}

func parseRounding(raw string) (tile.Rounding, error) {
	switch raw {
	case "", "nearest":
		return tile.RoundNearest, nil
	case "floor":
		return tile.RoundFloor, nil
	default:
		return 0, tileerr.Newf(tileerr.OutOfBounds, "unknown rounding %q", raw)
	}
}
