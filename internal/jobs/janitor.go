// Package jobs runs the background maintenance tasks of the bot.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

// Purger removes expired entries and reports how many went away.
type Purger interface {
	Purge(ctx context.Context) (int64, error)
}

// Janitor periodically purges expired webhook event ids.
type Janitor struct {
	sched   *gocron.Scheduler
	purger  Purger
	timeout time.Duration
	log     zerolog.Logger
}

// NewJanitor schedules p every interval. The first run happens on Start.
func NewJanitor(p Purger, interval time.Duration, lg zerolog.Logger) (*Janitor, error) {
	if p == nil {
		return nil, errors.New("jobs: nil purger")
	}
	if interval <= 0 {
		return nil, errors.New("jobs: purge interval must be positive")
	}

	j := &Janitor{
		sched:   gocron.NewScheduler(time.UTC),
		purger:  p,
		timeout: 30 * time.Second,
		log:     lg.With().Str("job", "event_purge").Logger(),
	}
	j.sched.SingletonModeAll()
	if _, err := j.sched.Every(interval).Do(j.RunOnce); err != nil {
		return nil, err
	}
	return j, nil
}

// Start runs the scheduler in the background.
func (j *Janitor) Start() { j.sched.StartAsync() }

// Stop halts the scheduler; a run in progress is allowed to finish.
func (j *Janitor) Stop() { j.sched.Stop() }

// RunOnce performs a single purge and logs its outcome.
func (j *Janitor) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	n, err := j.purger.Purge(ctx)
	if err != nil {
		j.log.Error().Err(err).Msg("purge failed")
		return
	}
	j.log.Debug().Int64("purged", n).Msg("purge done")
}
