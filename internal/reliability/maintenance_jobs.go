package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
)

// Disk usage thresholds, in percent of the data volume.
const (
	diskWarnPercent     = 90.0
	diskCriticalPercent = 98.0
)

// Maintainable is a database the maintenance job can check and checkpoint.
type Maintainable interface {
	Name() string
	HealthCheck(ctx context.Context) error
	WALCheckpoint(mode string) error
}

// BackupJob runs the backup and then rotates old backups.
type BackupJob struct {
	service       *BackupService
	retentionDays int
	timeout       time.Duration
	log           zerolog.Logger
}

// NewBackupJob creates the scheduled backup job.
func NewBackupJob(service *BackupService, retentionDays int, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		service:       service,
		retentionDays: retentionDays,
		timeout:       30 * time.Minute,
		log:           log.With().Str("job", "database_backup").Logger(),
	}
}

// Run executes the backup. Rotation failures are logged only.
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if _, err := j.service.Run(ctx); err != nil {
		return err
	}

	if _, err := j.service.RotateOldBackups(ctx, j.retentionDays); err != nil {
		j.log.Warn().Err(err).Msg("Backup rotation failed")
	}
	return nil
}

// Name returns the job name
func (j *BackupJob) Name() string {
	return "database_backup"
}

// MaintenanceJob checks database integrity, truncates the WAL files and
// watches free disk space on the data volume.
type MaintenanceJob struct {
	databases []Maintainable
	dataDir   string
	usage     func(path string) (*disk.UsageStat, error)
	log       zerolog.Logger
}

// NewMaintenanceJob creates the daily maintenance job
func NewMaintenanceJob(databases []Maintainable, dataDir string, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		databases: databases,
		dataDir:   dataDir,
		usage:     disk.Usage,
		log:       log.With().Str("job", "database_maintenance").Logger(),
	}
}

// Run executes the maintenance steps. A failed integrity check or a nearly
// full disk is an error; a failed checkpoint is only logged.
func (j *MaintenanceJob) Run() error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	for _, db := range j.databases {
		if err := db.HealthCheck(ctx); err != nil {
			j.log.Error().Err(err).Str("database", db.Name()).Msg("Database integrity check failed")
			return fmt.Errorf("integrity check failed for %s: %w", db.Name(), err)
		}

		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			j.log.Warn().Err(err).Str("database", db.Name()).Msg("WAL checkpoint failed")
		}
	}

	if err := j.checkDiskSpace(); err != nil {
		return err
	}

	j.log.Info().
		Int("databases", len(j.databases)).
		Dur("elapsed", time.Since(start)).
		Msg("Database maintenance completed")
	return nil
}

// Name returns the job name
func (j *MaintenanceJob) Name() string {
	return "database_maintenance"
}

func (j *MaintenanceJob) checkDiskSpace() error {
	usage, err := j.usage(j.dataDir)
	if err != nil {
		j.log.Warn().Err(err).Str("path", j.dataDir).Msg("Failed to read disk usage")
		return nil
	}

	switch {
	case usage.UsedPercent >= diskCriticalPercent:
		j.log.Error().
			Float64("used_percent", usage.UsedPercent).
			Uint64("free_mb", usage.Free/1024/1024).
			Msg("CRITICAL: data volume almost full")
		return fmt.Errorf("data volume %.1f%% full", usage.UsedPercent)
	case usage.UsedPercent >= diskWarnPercent:
		j.log.Warn().
			Float64("used_percent", usage.UsedPercent).
			Uint64("free_mb", usage.Free/1024/1024).
			Msg("Data volume running low on space")
	}
	return nil
}
