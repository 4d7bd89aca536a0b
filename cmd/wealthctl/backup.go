package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/aristath/wealth/internal/domain"
	"github.com/google/subcommands"
)

type backupCmd struct {
	rotate bool
}

func (*backupCmd) Name() string     { return "backup" }
func (*backupCmd) Synopsis() string { return "upload a backup of every database" }
func (*backupCmd) Usage() string {
	return `wealthctl backup [-rotate]

  Copies each database with VACUUM INTO and uploads it to the configured
  S3-compatible bucket. -rotate also deletes backups past the retention.
`
}

func (c *backupCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.rotate, "rotate", false, "delete backups older than BACKUP_RETENTION_DAYS")
}

func (c *backupCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	container, cfg, _, err := openContainer(ctx)
	if err != nil {
		return fail(err)
	}
	defer container.Close()

	if container.BackupService == nil {
		return fail(errors.New("backups are not configured: set BACKUP_BUCKET and credentials"))
	}

	meta, err := container.BackupService.Run(ctx)
	var partial *domain.PartialBatchFailure
	if err != nil && !errors.As(err, &partial) {
		return fail(err)
	}

	for _, db := range meta.Databases {
		fmt.Printf("%s -> %s (%d bytes, %s)\n", db.Name, db.Key, db.SizeBytes, db.Checksum)
	}
	if partial != nil {
		for name, ferr := range partial.Failed {
			fmt.Printf("%s FAILED: %v\n", name, ferr)
		}
		return subcommands.ExitFailure
	}

	if c.rotate {
		deleted, err := container.BackupService.RotateOldBackups(ctx, cfg.Backup.RetentionDays)
		if err != nil {
			return fail(err)
		}
		fmt.Printf("Rotated %d old backups\n", deleted)
	}
	return subcommands.ExitSuccess
}
