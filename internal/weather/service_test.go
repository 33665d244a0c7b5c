package weather

import (
	"context"
	"testing"
	"time"

	"github.com/weatherfront/weatherfront/internal/cache"
)

type countingGeocoder struct {
	stubResolver
	calls int
}

func (c *countingGeocoder) Suggestions(_ context.Context, _ string, _ int) []Candidate {
	c.calls++
	return []Candidate{{City: "Paris", Country: "FR"}}
}

type noopRecorder struct{}

func (noopRecorder) RecordSearch(*int64, Location, string) error { return nil }

func TestAutocompleteUsesCache(t *testing.T) {
	geo := &countingGeocoder{}
	svc := NewService(geo, nil, noopRecorder{}, cache.New(time.Hour), 5)

	first := svc.Autocomplete(context.Background(), "Paris")
	if len(first) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(first))
	}

	// Case-insensitive key: the second call must be served from cache.
	second := svc.Autocomplete(context.Background(), "paris")
	if len(second) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(second))
	}
	if geo.calls != 1 {
		t.Errorf("expected a single upstream call, got %d", geo.calls)
	}
}

func TestAutocompleteKeyIsLowercased(t *testing.T) {
	geo := &countingGeocoder{}
	c := cache.New(time.Hour)
	svc := NewService(geo, nil, noopRecorder{}, c, 5)

	svc.Autocomplete(context.Background(), "New York")
	if _, ok := c.Get("autocomplete_new york"); !ok {
		t.Error("expected result cached under lowercased key")
	}
}
