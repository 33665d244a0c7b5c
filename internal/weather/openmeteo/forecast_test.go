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

const forecastPayload = `{
	"latitude": 48.86,
	"longitude": 2.35,
	"timezone": "Europe/Paris",
	"elevation": 35.0,
	"current_weather": {"temperature": 21.5, "windspeed": 12.0, "weathercode": 2},
	"hourly": {
		"time": ["2024-05-01T00:00", "2024-05-01T01:00"],
		"temperature_2m": [12.1, 11.8],
		"weather_code": [1, 2],
		"precipitation_probability": [0, 5],
		"windspeed_10m": [10, 11],
		"winddirection_10m": [180, 190]
	},
	"daily": {
		"time": ["2024-05-01"],
		"weather_code": [2],
		"temperature_2m_max": [21.5],
		"temperature_2m_min": [9.8]
	}
}`

func newForecastTestClient(url string) *ForecastClient {
	return NewForecastClient(&http.Client{Timeout: 10 * time.Second}, url)
}

func TestFetchForecast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if got := q.Get("current_weather"); got != "true" {
			t.Errorf("expected current_weather=true, got %s", got)
		}
		if got := q.Get("timezone"); got != "auto" {
			t.Errorf("expected timezone=auto, got %s", got)
		}
		if got := q.Get("hourly"); got != hourlyFields {
			t.Errorf("unexpected hourly fields: %s", got)
		}
		if got := q.Get("daily"); got != dailyFields {
			t.Errorf("unexpected daily fields: %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(forecastPayload))
	}))
	defer srv.Close()

	raw, err := newForecastTestClient(srv.URL).Fetch(context.Background(), 48.86, 2.35)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw.Timezone != "Europe/Paris" {
		t.Errorf("expected timezone Europe/Paris, got %q", raw.Timezone)
	}
	if len(raw.Hourly.Time) != 2 || raw.Hourly.Temperature2m[1] != 11.8 {
		t.Errorf("hourly arrays not decoded: %+v", raw.Hourly)
	}
	if len(raw.Daily.Time) != 1 || raw.Daily.Temperature2mMax[0] != 21.5 {
		t.Errorf("daily arrays not decoded: %+v", raw.Daily)
	}
	if raw.CurrentWeather["temperature"] != 21.5 {
		t.Errorf("current weather not decoded: %+v", raw.CurrentWeather)
	}
}

func TestFetchForecastNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newForecastTestClient(srv.URL).Fetch(context.Background(), 0, 0)
	if !errors.Is(err, weather.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFetchForecastTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := newForecastTestClient(srv.URL).Fetch(context.Background(), 0, 0)
	if !errors.Is(err, weather.ErrNotFound) {
		t.Errorf("expected ErrNotFound on transport failure, got %v", err)
	}
}
