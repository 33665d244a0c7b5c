package weather

import (
	"log"
	"time"
)

// Canonical text forms used for session storage. The provider emits
// minute-precision local times without a zone offset, so parsing has to
// accept several ISO-8601 layouts.
const (
	canonicalDateTime = "2006-01-02T15:04:05"
	canonicalDate     = "2006-01-02"
)

var dateTimeLayouts = []string{
	canonicalDateTime,
	"2006-01-02T15:04",
	time.RFC3339,
}

// ParseISODateTime parses an ISO-8601 datetime in any of the layouts the
// provider or the session may contain.
func ParseISODateTime(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range dateTimeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// ParseISODate parses a bare ISO-8601 date.
func ParseISODate(s string) (time.Time, error) {
	return time.Parse(canonicalDate, s)
}

// Normalize reshapes the column-oriented provider payload into
// row-oriented records. Hourly rows zip six parallel arrays and daily
// rows four, truncated to the shortest constituent array so partial
// upstream data never produces ragged records. A row whose timestamp
// fails to parse is dropped, silently shortening the sequence.
// Returns ErrNotFound iff the payload is empty.
func Normalize(raw *RawForecast) (*ForecastBundle, error) {
	if raw.Empty() {
		return nil, ErrNotFound
	}

	h := raw.Hourly
	numHours := minLen(
		len(h.Time),
		len(h.Temperature2m),
		len(h.WeatherCode),
		len(h.PrecipitationProbability),
		len(h.WindSpeed10m),
		len(h.WindDirection10m),
	)

	hourly := make([]HourlyRecord, 0, numHours)
	for i := 0; i < numHours; i++ {
		ts, err := ParseISODateTime(h.Time[i])
		if err != nil {
			log.Printf("skipping invalid hourly timestamp %q at index %d: %v", h.Time[i], i, err)
			continue
		}
		hourly = append(hourly, HourlyRecord{
			Time:                     ts.Format(canonicalDateTime),
			Temperature:              h.Temperature2m[i],
			WeatherCode:              h.WeatherCode[i],
			PrecipitationProbability: h.PrecipitationProbability[i],
			WindSpeed:                h.WindSpeed10m[i],
			WindDirection:            h.WindDirection10m[i],
		})
	}

	d := raw.Daily
	numDays := minLen(
		len(d.Time),
		len(d.WeatherCode),
		len(d.Temperature2mMax),
		len(d.Temperature2mMin),
	)

	daily := make([]DailyRecord, 0, numDays)
	for i := 0; i < numDays; i++ {
		day, err := ParseISODate(d.Time[i])
		if err != nil {
			log.Printf("skipping invalid daily date %q at index %d: %v", d.Time[i], i, err)
			continue
		}
		daily = append(daily, DailyRecord{
			Day:         day.Format(canonicalDate),
			TempMax:     d.Temperature2mMax[i],
			TempMin:     d.Temperature2mMin[i],
			WeatherCode: d.WeatherCode[i],
		})
	}

	return &ForecastBundle{
		CurrentWeather: raw.CurrentWeather,
		Hourly:         hourly,
		Daily:          daily,
		Latitude:       raw.Latitude,
		Longitude:      raw.Longitude,
		Timezone:       raw.Timezone,
		Elevation:      raw.Elevation,
	}, nil
}

// Rehydrate converts canonical text timestamps back to structured time
// values for rendering. It is a pure transform over a new value; the
// stored bundle is never mutated. Rows whose timestamp fails to parse
// are dropped, the same policy Normalize applies.
func Rehydrate(bundle *ForecastBundle) ForecastView {
	view := ForecastView{
		CurrentWeather: bundle.CurrentWeather,
		Latitude:       bundle.Latitude,
		Longitude:      bundle.Longitude,
		Timezone:       bundle.Timezone,
		Elevation:      bundle.Elevation,
	}

	view.Hourly = make([]HourlyView, 0, len(bundle.Hourly))
	for _, rec := range bundle.Hourly {
		ts, err := ParseISODateTime(rec.Time)
		if err != nil {
			log.Printf("dropping hourly record with unparseable time %q: %v", rec.Time, err)
			continue
		}
		view.Hourly = append(view.Hourly, HourlyView{
			Time:                     ts,
			Temperature:              rec.Temperature,
			WeatherCode:              rec.WeatherCode,
			PrecipitationProbability: rec.PrecipitationProbability,
			WindSpeed:                rec.WindSpeed,
			WindDirection:            rec.WindDirection,
		})
	}

	view.Daily = make([]DailyView, 0, len(bundle.Daily))
	for _, rec := range bundle.Daily {
		day, err := ParseISODate(rec.Day)
		if err != nil {
			log.Printf("dropping daily record with unparseable day %q: %v", rec.Day, err)
			continue
		}
		view.Daily = append(view.Daily, DailyView{
			Day:         day,
			TempMax:     rec.TempMax,
			TempMin:     rec.TempMin,
			WeatherCode: rec.WeatherCode,
		})
	}

	return view
}

func minLen(lengths ...int) int {
	if len(lengths) == 0 {
		return 0
	}
	m := lengths[0]
	for _, l := range lengths[1:] {
		if l < m {
			m = l
		}
	}
	return m
}
