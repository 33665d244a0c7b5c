package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
)

// Defaults used when a session payload carries no usable identity.
const (
	defaultCountry  = "XX"
	defaultName     = "Unknown"
	unknownLocation = "Unknown Location"
)

// SessionLocation is the mapping stored under the "location" session key.
// Lat/Lon are text: they are either both set to a parseable value or
// both empty.
type SessionLocation struct {
	Display string `json:"display"`
	Lat     string `json:"lat"`
	Lon     string `json:"lon"`
	Name    string `json:"name,omitempty"`
	Admin1  string `json:"admin1,omitempty"`
	Country string `json:"country,omitempty"`
}

// Resolver geocodes a free-text place name to a single best match.
// Implemented by openmeteo.GeocodingClient.
type Resolver interface {
	ResolveOne(ctx context.Context, query string) (*Location, error)
}

// EncodeSessionLocation builds the session mapping for a submitted city
// selection. Comma decimal separators are tolerated. Lat/lon are stored
// as text only when both parse; if either fails the pair is dropped
// atomically and decoding falls back to geocoding by display name.
func EncodeSessionLocation(selectedName, latText, lonText string) SessionLocation {
	loc := SessionLocation{Display: selectedName}

	if latText == "" || lonText == "" {
		return loc
	}

	lat, latErr := parseCoordinate(latText)
	lon, lonErr := parseCoordinate(lonText)
	if latErr != nil || lonErr != nil {
		log.Printf("invalid lat/lon %q,%q for %q; storing without coordinates", latText, lonText, selectedName)
		return loc
	}

	loc.Lat = strconv.FormatFloat(lat, 'f', -1, 64)
	loc.Lon = strconv.FormatFloat(lon, 'f', -1, 64)
	return loc
}

// sessionShape tags the variants a "location" session value can take.
// Session state accumulates legacy formats across feature iterations, so
// the decoder classifies first and then runs one decoder per variant.
type sessionShape int

const (
	shapeEmpty sessionShape = iota
	shapeObject
	shapeCoordPair
	shapePlaceName
)

func classifySession(raw string) (sessionShape, *sessionObject) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return shapeEmpty, nil
	}

	if strings.HasPrefix(trimmed, "{") {
		var obj sessionObject
		if err := json.Unmarshal([]byte(trimmed), &obj); err == nil {
			return shapeObject, &obj
		}
		log.Printf("malformed location object in session: %q", trimmed)
		return shapeEmpty, nil
	}

	if strings.Count(trimmed, ",") == 1 {
		return shapeCoordPair, nil
	}
	return shapePlaceName, nil
}

// sessionObject is the loose wire form of the mapping variant. Lat/lon
// appear as strings in current sessions and as numbers in legacy ones.
type sessionObject struct {
	Display string `json:"display"`
	Lat     any    `json:"lat"`
	Lon     any    `json:"lon"`
	Name    string `json:"name"`
	Admin1  string `json:"admin1"`
	Country string `json:"country"`
}

// DecodeSessionLocation resolves the session "location" value to a
// Location. raw may be a JSON object (autocomplete selection), a plain
// "lat,lon" pair, a bare place name, or empty. Returns ErrNotFound when
// nothing resolvable is present.
func DecodeSessionLocation(ctx context.Context, raw string, geo Resolver) (*Location, error) {
	shape, obj := classifySession(raw)

	switch shape {
	case shapeEmpty:
		return nil, ErrNotFound
	case shapeObject:
		return decodeObject(ctx, obj, geo)
	case shapeCoordPair:
		return decodeCoordPair(ctx, strings.TrimSpace(raw), geo)
	case shapePlaceName:
		return resolveByName(ctx, strings.TrimSpace(raw), geo)
	}
	return nil, ErrNotFound
}

func decodeObject(ctx context.Context, obj *sessionObject, geo Resolver) (*Location, error) {
	lat, latOK := coordinateValue(obj.Lat)
	lon, lonOK := coordinateValue(obj.Lon)

	if !latOK || !lonOK {
		// Only a display name survived; re-geocode it.
		if obj.Display != "" {
			return resolveByName(ctx, obj.Display, geo)
		}
		return nil, ErrNotFound
	}

	display := obj.Display
	if display == "" {
		display = fmt.Sprintf("%.4f,%.4f", lat, lon)
	}

	loc := &Location{
		Lat:         lat,
		Lon:         lon,
		DisplayName: display,
		Name:        strings.TrimSpace(obj.Name),
		Admin1:      strings.TrimSpace(obj.Admin1),
		Country:     strings.TrimSpace(obj.Country),
	}

	// Structured components win when present; otherwise derive them
	// from the display string.
	if loc.Name == "" || loc.Country == "" {
		deriveComponents(loc, display)
	}
	return loc, nil
}

// deriveComponents splits a display string on commas: one part keeps
// the default country, two parts treat the second as country, three or
// more treat the second as admin region and the last as country.
func deriveComponents(loc *Location, display string) {
	parts := strings.Split(display, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	if len(parts) > 0 && parts[0] != "" {
		loc.Name = parts[0]
	} else if loc.Name == "" {
		loc.Name = defaultName
	}

	switch {
	case len(parts) >= 3:
		loc.Admin1 = parts[1]
		loc.Country = parts[len(parts)-1]
	case len(parts) == 2:
		loc.Country = parts[1]
	default:
		if loc.Country == "" {
			loc.Country = defaultCountry
		}
	}
	if loc.Country == "" {
		loc.Country = defaultCountry
	}
}

func decodeCoordPair(ctx context.Context, raw string, geo Resolver) (*Location, error) {
	latText, lonText, _ := strings.Cut(raw, ",")
	lat, latErr := parseCoordinate(latText)
	lon, lonErr := parseCoordinate(lonText)
	if latErr != nil || lonErr != nil {
		log.Printf("could not parse coordinates from %q; geocoding as name", raw)
		return resolveByName(ctx, raw, geo)
	}

	// The raw pair doubles as the city name so direct coordinate
	// searches still get a stable identity.
	return &Location{
		Lat:         lat,
		Lon:         lon,
		DisplayName: raw,
		Name:        raw,
		Country:     defaultCountry,
	}, nil
}

func resolveByName(ctx context.Context, name string, geo Resolver) (*Location, error) {
	loc, err := geo.ResolveOne(ctx, name)
	if err != nil {
		log.Printf("could not geocode location %q: %v", name, err)
		return nil, ErrNotFound
	}
	return loc, nil
}

// parseCoordinate parses a latitude/longitude string, accepting a comma
// as the decimal separator.
func parseCoordinate(s string) (float64, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	return strconv.ParseFloat(cleaned, 64)
}

// coordinateValue extracts a float from the loosely typed lat/lon of a
// legacy session object.
func coordinateValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		if n == "" {
			return 0, false
		}
		f, err := parseCoordinate(n)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
