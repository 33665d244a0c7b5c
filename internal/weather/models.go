package weather

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a location cannot be resolved or a
	// forecast payload is empty.
	ErrNotFound = errors.New("weather data not found")
)

// Candidate is a single geocoding search result, shaped for the
// autocomplete dropdown. Lat/Lon are pointers because the upstream API
// may omit them.
type Candidate struct {
	City        string   `json:"city"`
	Admin1      string   `json:"admin1"`
	Country     string   `json:"country"`
	Display     string   `json:"display"`
	FullDisplay string   `json:"full_display"`
	Lat         *float64 `json:"lat"`
	Lon         *float64 `json:"lon"`
}

// Location is a resolved coordinate plus display identity. It drives a
// forecast fetch and the city/history upsert.
type Location struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	DisplayName string  `json:"display_name"`
	Name        string  `json:"name"`
	Admin1      string  `json:"admin1"`
	Country     string  `json:"country"`
}

// FullDisplay derives the canonical "Name, Admin1, Country" form,
// skipping an empty admin region.
func (l Location) FullDisplay() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{l.Name, l.Admin1, l.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// RawForecast is the provider payload as Open-Meteo returns it:
// column-oriented parallel arrays under hourly/daily.
type RawForecast struct {
	Latitude       float64        `json:"latitude"`
	Longitude      float64        `json:"longitude"`
	Timezone       string         `json:"timezone"`
	Elevation      float64        `json:"elevation"`
	CurrentWeather map[string]any `json:"current_weather"`
	Hourly         RawHourly      `json:"hourly"`
	Daily          RawDaily       `json:"daily"`
}

// RawHourly holds the hourly parallel arrays requested from the provider.
type RawHourly struct {
	Time                     []string  `json:"time"`
	Temperature2m            []float64 `json:"temperature_2m"`
	WeatherCode              []int     `json:"weather_code"`
	PrecipitationProbability []float64 `json:"precipitation_probability"`
	WindSpeed10m             []float64 `json:"windspeed_10m"`
	WindDirection10m         []float64 `json:"winddirection_10m"`
}

// RawDaily holds the daily parallel arrays requested from the provider.
type RawDaily struct {
	Time             []string  `json:"time"`
	WeatherCode      []int     `json:"weather_code"`
	Temperature2mMax []float64 `json:"temperature_2m_max"`
	Temperature2mMin []float64 `json:"temperature_2m_min"`
}

// Empty reports whether the payload carries no usable data at all.
func (r *RawForecast) Empty() bool {
	return r == nil ||
		(r.CurrentWeather == nil && len(r.Hourly.Time) == 0 && len(r.Daily.Time) == 0)
}

// ForecastBundle is the row-oriented, session-storable forecast.
// Timestamps are canonical ISO text; Rehydrate converts them back to
// structured values for rendering.
type ForecastBundle struct {
	CurrentWeather map[string]any `json:"current_weather"`
	Hourly         []HourlyRecord `json:"hourly"`
	Daily          []DailyRecord  `json:"daily"`
	Latitude       float64        `json:"latitude"`
	Longitude      float64        `json:"longitude"`
	Timezone       string         `json:"timezone"`
	Elevation      float64        `json:"elevation"`
}

// HourlyRecord is one zipped hourly row. Time is canonical ISO text.
type HourlyRecord struct {
	Time                     string  `json:"time"`
	Temperature              float64 `json:"temperature"`
	WeatherCode              int     `json:"weather_code"`
	PrecipitationProbability float64 `json:"precipitation_probability"`
	WindSpeed                float64 `json:"windspeed"`
	WindDirection            float64 `json:"winddirection"`
}

// DailyRecord is one zipped daily row. Day is a canonical ISO date.
type DailyRecord struct {
	Day         string  `json:"day"`
	TempMax     float64 `json:"temp_max"`
	TempMin     float64 `json:"temp_min"`
	WeatherCode int     `json:"weather_code"`
}

// ForecastView is the render-time counterpart of ForecastBundle with
// parsed time values.
type ForecastView struct {
	CurrentWeather map[string]any
	Hourly         []HourlyView
	Daily          []DailyView
	Latitude       float64
	Longitude      float64
	Timezone       string
	Elevation      float64
}

// HourlyView is an hourly row with a parsed timestamp.
type HourlyView struct {
	Time                     time.Time
	Temperature              float64
	WeatherCode              int
	PrecipitationProbability float64
	WindSpeed                float64
	WindDirection            float64
}

// DailyView is a daily row with a parsed date.
type DailyView struct {
	Day         time.Time
	TempMax     float64
	TempMin     float64
	WeatherCode int
}
