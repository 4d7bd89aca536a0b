package currency

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// RefreshJob refreshes a stale rate table and revalues global assets.
type RefreshJob struct {
	cache        *RateCache
	consolidator *Consolidator
	timeout      time.Duration
	log          zerolog.Logger
}

// NewRefreshJob creates the rate refresh job.
func NewRefreshJob(cache *RateCache, consolidator *Consolidator, log zerolog.Logger) *RefreshJob {
	return &RefreshJob{
		cache:        cache,
		consolidator: consolidator,
		timeout:      time.Minute,
		log:          log.With().Str("job", "refresh_rates").Logger(),
	}
}

// Run refreshes rates when older than the refresh interval, then consolidates.
// A failed refresh still consolidates against the table left in place.
func (j *RefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if err := j.cache.EnsureFresh(ctx); err != nil {
		j.log.Warn().Err(err).Msg("Rate refresh failed")
	}

	_, err := j.consolidator.ConsolidateAll(ctx)
	return err
}

// Name returns the job name for scheduling and logging.
func (j *RefreshJob) Name() string {
	return "refresh_rates"
}
