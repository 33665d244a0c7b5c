package openmeteo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/weatherfront/weatherfront/internal/weather"
)

const geocodingPayload = `{
	"results": [
		{"name": "L'Hospitalet", "admin1": "Catalonia", "country_code": "ES", "latitude": 41.36, "longitude": 2.1},
		{"name": "Paris", "admin1": "", "country_code": "FR", "latitude": 48.85, "longitude": 2.35},
		{"name": "NoCoords", "admin1": "Nowhere", "country_code": "XX"}
	]
}`

func newGeoTestClient(url string) *GeocodingClient {
	return NewGeocodingClient(&http.Client{Timeout: 3 * time.Second}, url)
}

func TestSuggestionsFormatsCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if got := q.Get("name"); got != "par" {
			t.Errorf("expected name=par, got %s", got)
		}
		if got := q.Get("count"); got != "5" {
			t.Errorf("expected count=5, got %s", got)
		}
		if got := q.Get("language"); got != "en" {
			t.Errorf("expected language=en, got %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(geocodingPayload))
	}))
	defer srv.Close()

	got := newGeoTestClient(srv.URL).Suggestions(context.Background(), "par", 5)
	if len(got) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(got))
	}

	// Quote characters are stripped from names.
	if got[0].City != "LHospitalet" {
		t.Errorf("expected quotes stripped, got %q", got[0].City)
	}
	if got[0].Display != "LHospitalet, Catalonia" {
		t.Errorf("unexpected display: %q", got[0].Display)
	}
	if got[0].FullDisplay != "LHospitalet, Catalonia, ES" {
		t.Errorf("unexpected full display: %q", got[0].FullDisplay)
	}

	// No admin1: display is just the name, full display skips it.
	if got[1].Display != "Paris" || got[1].FullDisplay != "Paris, FR" {
		t.Errorf("unexpected displays without admin1: %q / %q", got[1].Display, got[1].FullDisplay)
	}

	if got[2].Lat != nil || got[2].Lon != nil {
		t.Error("expected nil coordinates for result without lat/lon")
	}
}

func TestSuggestionsUpstreamFailureReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if got := newGeoTestClient(srv.URL).Suggestions(context.Background(), "paris", 5); len(got) != 0 {
		t.Errorf("expected no candidates on upstream failure, got %d", len(got))
	}
}

func TestResolveOne(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("count"); got != "1" {
			t.Errorf("expected count=1, got %s", got)
		}
		w.Write([]byte(`{"results": [{"name": "Paris", "admin1": "Ile-de-France", "country_code": "FR", "latitude": 48.85, "longitude": 2.35}]}`))
	}))
	defer srv.Close()

	loc, err := newGeoTestClient(srv.URL).ResolveOne(context.Background(), "Paris")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc.Lat != 48.85 || loc.Lon != 2.35 {
		t.Errorf("unexpected coordinates: %f,%f", loc.Lat, loc.Lon)
	}
	if loc.DisplayName != "Paris, Ile-de-France, FR" {
		t.Errorf("unexpected display name: %q", loc.DisplayName)
	}
}

func TestResolveOneNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results": []}`))
	}))
	defer srv.Close()

	_, err := newGeoTestClient(srv.URL).ResolveOne(context.Background(), "Nowhereville")
	if !errors.Is(err, weather.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveOneMissingCoordinates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results": [{"name": "Ghost", "country_code": "XX"}]}`))
	}))
	defer srv.Close()

	_, err := newGeoTestClient(srv.URL).ResolveOne(context.Background(), "Ghost")
	if !errors.Is(err, weather.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveOneTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	_, err := newGeoTestClient(srv.URL).ResolveOne(context.Background(), "Paris")
	if !errors.Is(err, weather.ErrNotFound) {
		t.Errorf("expected ErrNotFound on transport failure, got %v", err)
	}
}
