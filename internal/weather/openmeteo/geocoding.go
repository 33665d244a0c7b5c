package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/weatherfront/weatherfront/internal/weather"
)

const (
	// DefaultGeocodingURL is the Open-Meteo geocoding search endpoint.
	DefaultGeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"

	geocodingLanguage = "en"
)

// quoteStripper removes quote characters from upstream place names
// before they reach templates or the session.
var quoteStripper = strings.NewReplacer(`'`, "", `"`, "")

// GeocodingClient resolves free-text place names against the Open-Meteo
// geocoding API.
type GeocodingClient struct {
	baseURL string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
}

// NewGeocodingClient creates a client using the given HTTP client, whose
// timeout bounds each call. baseURL overrides the production endpoint
// when non-empty.
func NewGeocodingClient(client *http.Client, baseURL string) *GeocodingClient {
	if baseURL == "" {
		baseURL = DefaultGeocodingURL
	}
	return &GeocodingClient{
		baseURL: baseURL,
		client:  client,
		circuit: newBreaker("geocoding"),
	}
}

// geocodingResult is one raw item of the upstream "results" list.
type geocodingResult struct {
	Name        string   `json:"name"`
	Admin1      string   `json:"admin1"`
	CountryCode string   `json:"country_code"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

func (c *GeocodingClient) search(ctx context.Context, query string, count int) ([]geocodingResult, error) {
	values := url.Values{}
	values.Set("name", query)
	values.Set("count", fmt.Sprintf("%d", count))
	values.Set("language", geocodingLanguage)

	resp, err := doRequest(ctx, c.client, c.circuit, c.baseURL+"?"+values.Encode())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		Results []geocodingResult `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	return payload.Results, nil
}

// Suggestions returns up to limit autocomplete candidates for query.
// Upstream failures are logged and degrade to an empty list; they are
// never propagated.
func (c *GeocodingClient) Suggestions(ctx context.Context, query string, limit int) []weather.Candidate {
	results, err := c.search(ctx, query, limit)
	if err != nil {
		log.Printf("geocoding suggestions failed for %q: %v", query, err)
		return nil
	}

	suggestions := make([]weather.Candidate, 0, len(results))
	for _, item := range results {
		name := strings.TrimSpace(quoteStripper.Replace(item.Name))
		admin1 := strings.TrimSpace(item.Admin1)
		country := strings.TrimSpace(item.CountryCode)

		display := name
		fullDisplay := joinParts(name, country)
		if admin1 != "" {
			display = joinParts(name, admin1)
			fullDisplay = joinParts(name, admin1, country)
		}

		suggestions = append(suggestions, weather.Candidate{
			City:        name,
			Admin1:      admin1,
			Country:     country,
			Display:     display,
			FullDisplay: fullDisplay,
			Lat:         item.Latitude,
			Lon:         item.Longitude,
		})
	}
	return suggestions
}

// ResolveOne geocodes a place name to its single best match. Returns
// weather.ErrNotFound when the upstream has no result or the match
// lacks coordinates.
func (c *GeocodingClient) ResolveOne(ctx context.Context, query string) (*weather.Location, error) {
	results, err := c.search(ctx, query, 1)
	if err != nil {
		log.Printf("geocoding lookup failed for %q: %v", query, err)
		return nil, weather.ErrNotFound
	}
	if len(results) == 0 {
		return nil, weather.ErrNotFound
	}

	item := results[0]
	if item.Latitude == nil || item.Longitude == nil {
		log.Printf("geocoding result for %q missing coordinates", query)
		return nil, weather.ErrNotFound
	}

	name := strings.TrimSpace(quoteStripper.Replace(item.Name))
	admin1 := strings.TrimSpace(item.Admin1)
	country := strings.TrimSpace(item.CountryCode)

	return &weather.Location{
		Lat:         *item.Latitude,
		Lon:         *item.Longitude,
		DisplayName: joinParts(name, admin1, country),
		Name:        name,
		Admin1:      admin1,
		Country:     country,
	}, nil
}

func joinParts(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}
