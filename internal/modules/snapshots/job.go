package snapshots

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Job runs the daily snapshot from the scheduler.
type Job struct {
	engine  *Engine
	timeout time.Duration
	log     zerolog.Logger
}

// NewJob creates the daily snapshot job.
func NewJob(engine *Engine, log zerolog.Logger) *Job {
	return &Job{
		engine:  engine,
		timeout: 10 * time.Minute,
		log:     log.With().Str("job", "daily_snapshot").Logger(),
	}
}

// Run snapshots every portfolio for today's date.
func (j *Job) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	j.log.Debug().Dur("timeout", j.timeout).Msg("Running daily snapshot")
	_, err := j.engine.Snapshot(ctx, j.engine.now())
	return err
}

// Name returns the job name
func (j *Job) Name() string {
	return "daily_snapshot"
}
