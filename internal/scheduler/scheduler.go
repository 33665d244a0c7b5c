package scheduler

import (
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/weatherfront/weatherfront/internal/cache"
)

// Janitor periodically sweeps expired entries out of the autocomplete
// cache so long-running processes do not accumulate dead keys.
type Janitor struct {
	scheduler *gocron.Scheduler
	cache     *cache.Cache
	interval  time.Duration
}

// New creates a Janitor sweeping cache every interval.
func New(c *cache.Cache, interval time.Duration) *Janitor {
	return &Janitor{
		scheduler: gocron.NewScheduler(time.UTC),
		cache:     c,
		interval:  interval,
	}
}

// Start schedules the periodic sweep and starts the underlying
// scheduler.
func (j *Janitor) Start() error {
	minutes := int(j.interval.Minutes())
	if minutes <= 0 {
		minutes = 10
	}

	_, err := j.scheduler.Every(minutes).Minutes().Do(func() {
		if removed := j.cache.Sweep(); removed > 0 {
			log.Printf("cache janitor: removed %d expired entries", removed)
		}
	})
	if err != nil {
		return err
	}

	j.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future sweeps.
func (j *Janitor) Stop() {
	if j.scheduler != nil {
		j.scheduler.Stop()
	}
}
