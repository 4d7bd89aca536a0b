package clientdata

import (
	"time"

	"github.com/rs/zerolog"
)

// CleanupJob purges cache entries that are past their stale grace period.
type CleanupJob struct {
	repo  *Repository
	grace time.Duration
	log   zerolog.Logger
}

// NewCleanupJob creates the hourly cache sweep. Entries survive StaleGrace
// after expiry so feed clients can still serve them when the feed is down.
func NewCleanupJob(repo *Repository, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		repo:  repo,
		grace: StaleGrace,
		log:   log.With().Str("job", "cache_cleanup").Logger(),
	}
}

func (j *CleanupJob) Run() error {
	start := time.Now()

	results, err := j.repo.DeleteAllExpired(j.grace)
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to purge expired cache entries")
		return err
	}

	var total int64
	for table, count := range results {
		if count == 0 {
			continue
		}
		j.log.Debug().Str("table", table).Int64("deleted", count).Msg("Purged cache entries")
		total += count
	}

	j.log.Info().
		Int64("deleted", total).
		Dur("elapsed", time.Since(start)).
		Msg("Cache cleanup completed")

	return nil
}

// Name returns the job name for scheduling and logging.
func (j *CleanupJob) Name() string {
	return "cache_cleanup"
}
