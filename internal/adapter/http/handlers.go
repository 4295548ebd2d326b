package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/couchcryptid/geocode-orchestrator/internal/adapter/bing"
	"github.com/couchcryptid/geocode-orchestrator/internal/domain"
)

func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("missing required parameter: q", "invalid"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	coord, err := s.service.Geocode(ctx, query, domain.Category(q.Get("category")))
	if err != nil {
		s.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, coord)
}

func (s *Server) handleBoundary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, lon, err := parsePosition(q.Get("lat"), q.Get("lon"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error(), "invalid"))
		return
	}
	lod, err := parseOptionalInt(q.Get("lod"), bing.DefaultLevelOfDetail)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid lod", "invalid"))
		return
	}
	maxGeoData, err := parseOptionalInt(q.Get("max"), bing.DefaultMaxGeoData)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid max", "invalid"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	boundary, err := s.service.GeocodeBoundary(ctx, lat, lon, domain.Category(q.Get("category")), lod, maxGeoData)
	if err != nil {
		s.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, boundary)
}

func (s *Server) handlePoint(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, lon, err := parsePosition(q.Get("lat"), q.Get("lon"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error(), "invalid"))
		return
	}

	var entities []string
	for e := range strings.SplitSeq(q.Get("entities"), ",") {
		if e = strings.TrimSpace(e); e != "" {
			entities = append(entities, e)
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	resource, err := s.service.GeocodePoint(ctx, lat, lon, entities)
	if err != nil {
		s.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resource)
}

func (s *Server) handleQueues(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Stats())
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	s.service.Reset()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeLookupError(w http.ResponseWriter, err error) {
	kind := domain.ErrorKind(err)
	status := lookupStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("geocode lookup failed", "outcome", kind, "status", status, "error", err)
	}
	writeJSON(w, status, errorBody(err.Error(), kind))
}

func lookupStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnsupportedQuery):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrEmptyResult):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrCancelled):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrTransportFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func parsePosition(rawLat, rawLon string) (float64, float64, error) {
	lat, err := strconv.ParseFloat(rawLat, 64)
	if err != nil || math.IsNaN(lat) || lat < -90 || lat > 90 {
		return 0, 0, fmt.Errorf("invalid lat %q", rawLat)
	}
	lon, err := strconv.ParseFloat(rawLon, 64)
	if err != nil || math.IsNaN(lon) || lon < -180 || lon > 180 {
		return 0, 0, fmt.Errorf("invalid lon %q", rawLon)
	}
	return lat, lon, nil
}

func parseOptionalInt(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func errorBody(msg, kind string) map[string]string {
	return map[string]string{"error": msg, "kind": kind}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
