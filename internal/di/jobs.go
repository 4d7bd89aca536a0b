// Package di provides dependency injection for scheduler jobs.
package di

import (
	"fmt"

	"github.com/aristath/wealth/internal/clientdata"
	"github.com/aristath/wealth/internal/config"
	"github.com/aristath/wealth/internal/modules/currency"
	"github.com/aristath/wealth/internal/modules/snapshots"
	"github.com/aristath/wealth/internal/reliability"
	"github.com/aristath/wealth/internal/scheduler"
	"github.com/rs/zerolog"
)

// Fixed job schedules (cron with seconds field).
const (
	refreshRatesSchedule = "0 * * * * *"  // every minute; refreshes only when stale
	cacheCleanupSchedule = "0 15 * * * *" // hourly
	maintenanceSchedule  = "0 0 4 * * *"  // 04:00 daily, after the backup window
)

type scheduledJob struct {
	schedule string
	job      scheduler.Job
}

// RegisterJobs creates every job and registers it with the container's scheduler.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}

	if container.Scheduler == nil {
		container.Scheduler = scheduler.New(log)
	}

	instances := &JobInstances{
		DailySnapshot: snapshots.NewJob(container.SnapshotEngine, log),
		RefreshRates:  currency.NewRefreshJob(container.RateCache, container.Consolidator, log),
		CacheCleanup:  clientdata.NewCleanupJob(container.ClientDataRepo, log),
	}

	var maintainable []reliability.Maintainable
	for _, db := range container.Databases() {
		maintainable = append(maintainable, db)
	}
	instances.DatabaseMaintenance = reliability.NewMaintenanceJob(maintainable, cfg.DataDir, log)

	schedules := []scheduledJob{
		{cfg.SnapshotSchedule, instances.DailySnapshot},
		{refreshRatesSchedule, instances.RefreshRates},
		{cacheCleanupSchedule, instances.CacheCleanup},
		{maintenanceSchedule, instances.DatabaseMaintenance},
	}

	if container.BackupService != nil {
		instances.DatabaseBackup = reliability.NewBackupJob(container.BackupService, cfg.Backup.RetentionDays, log)
		schedules = append(schedules, scheduledJob{cfg.Backup.Schedule, instances.DatabaseBackup})
	}

	for _, s := range schedules {
		if err := container.Scheduler.AddJob(s.schedule, s.job); err != nil {
			return nil, fmt.Errorf("failed to register job %s: %w", s.job.Name(), err)
		}
	}

	log.Info().Int("jobs", len(schedules)).Msg("Jobs registered")
	return instances, nil
}
