package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"

	"github.com/sony/gobreaker"

	"github.com/weatherfront/weatherfront/internal/weather"
)

const (
	// DefaultForecastURL is the Open-Meteo forecast endpoint.
	DefaultForecastURL = "https://api.open-meteo.com/v1/forecast"

	hourlyFields = "temperature_2m,weather_code,precipitation_probability,windspeed_10m,winddirection_10m"
	dailyFields  = "weather_code,temperature_2m_max,temperature_2m_min"
)

// ForecastClient fetches raw forecasts from the Open-Meteo API.
type ForecastClient struct {
	baseURL string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
}

// NewForecastClient creates a client using the given HTTP client, whose
// timeout bounds each call. baseURL overrides the production endpoint
// when non-empty.
func NewForecastClient(client *http.Client, baseURL string) *ForecastClient {
	if baseURL == "" {
		baseURL = DefaultForecastURL
	}
	return &ForecastClient{
		baseURL: baseURL,
		client:  client,
		circuit: newBreaker("forecast"),
	}
}

// Fetch retrieves the raw hourly/daily/current payload for a
// coordinate, with provider-side timezone detection. Any transport
// error or non-2xx response yields weather.ErrNotFound; there is no
// retry.
func (c *ForecastClient) Fetch(ctx context.Context, lat, lon float64) (*weather.RawForecast, error) {
	values := url.Values{}
	values.Set("latitude", fmt.Sprintf("%f", lat))
	values.Set("longitude", fmt.Sprintf("%f", lon))
	values.Set("hourly", hourlyFields)
	values.Set("daily", dailyFields)
	values.Set("current_weather", "true")
	values.Set("timezone", "auto")

	resp, err := doRequest(ctx, c.client, c.circuit, c.baseURL+"?"+values.Encode())
	if err != nil {
		log.Printf("forecast fetch failed for %f,%f: %v", lat, lon, err)
		return nil, weather.ErrNotFound
	}
	defer resp.Body.Close()

	var raw weather.RawForecast
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		log.Printf("forecast payload decode failed for %f,%f: %v", lat, lon, err)
		return nil, weather.ErrNotFound
	}
	return &raw, nil
}
