package weather

import (
	"context"
	"log"
	"strings"

	"github.com/weatherfront/weatherfront/internal/cache"
)

// Geocoder is the outbound geocoding dependency.
type Geocoder interface {
	Resolver
	Suggestions(ctx context.Context, query string, limit int) []Candidate
}

// Forecaster is the outbound forecast dependency.
type Forecaster interface {
	Fetch(ctx context.Context, lat, lon float64) (*RawForecast, error)
}

// HistoryRecorder persists the city/search-history side effects of a
// lookup. Implemented by store.Store.
type HistoryRecorder interface {
	RecordSearch(userID *int64, loc Location, timezone string) error
}

// Service sequences the weather lookup pipeline: session location
// decode, forecast fetch, normalization, history recording. The
// autocomplete path is gated by a shared TTL cache.
type Service struct {
	geo          Geocoder
	forecast     Forecaster
	history      HistoryRecorder
	autocomplete *cache.Cache
	suggestLimit int
}

// NewService wires the pipeline dependencies together.
func NewService(geo Geocoder, forecast Forecaster, history HistoryRecorder, autocomplete *cache.Cache, suggestLimit int) *Service {
	return &Service{
		geo:          geo,
		forecast:     forecast,
		history:      history,
		autocomplete: autocomplete,
		suggestLimit: suggestLimit,
	}
}

// Autocomplete returns suggestion candidates for query, consulting the
// shared cache first. Concurrent misses for the same query may both hit
// the upstream; the last write wins, which is fine for idempotent data.
func (s *Service) Autocomplete(ctx context.Context, query string) []Candidate {
	key := "autocomplete_" + strings.ToLower(query)

	if cached, ok := s.autocomplete.Get(key); ok {
		if candidates, ok := cached.([]Candidate); ok {
			return candidates
		}
	}

	candidates := s.geo.Suggestions(ctx, query, s.suggestLimit)
	s.autocomplete.Set(key, candidates)
	return candidates
}

// ResolveLocation decodes the raw session location value, re-geocoding
// by name when the session lacks coordinates.
func (s *Service) ResolveLocation(ctx context.Context, rawSession string) (*Location, error) {
	return DecodeSessionLocation(ctx, rawSession, s.geo)
}

// Forecast fetches and normalizes the forecast for a resolved location.
func (s *Service) Forecast(ctx context.Context, loc *Location) (*ForecastBundle, error) {
	raw, err := s.forecast.Fetch(ctx, loc.Lat, loc.Lon)
	if err != nil {
		return nil, err
	}
	return Normalize(raw)
}

// RecordSearch persists the city and, for authenticated users, the
// history edge. Persistence failures are logged and swallowed; they
// must never abort the surrounding request.
func (s *Service) RecordSearch(userID *int64, loc *Location, bundle *ForecastBundle) {
	timezone := ""
	if bundle != nil {
		timezone = bundle.Timezone
	}
	if err := s.history.RecordSearch(userID, *loc, timezone); err != nil {
		log.Printf("recording search for %q failed: %v", loc.DisplayName, err)
	}
}
