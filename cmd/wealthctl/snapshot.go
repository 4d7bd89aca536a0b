package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/aristath/wealth/internal/domain"
	"github.com/google/subcommands"
)

type snapshotCmd struct {
	date string
}

func (*snapshotCmd) Name() string     { return "snapshot" }
func (*snapshotCmd) Synopsis() string { return "write the daily history snapshot of every portfolio" }
func (*snapshotCmd) Usage() string {
	return `wealthctl snapshot [-date YYYY-MM-DD]

  Values every portfolio and stores one snapshot per portfolio for the date
  (today by default). Re-running a date overwrites it with the same values.
`
}

func (c *snapshotCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "date", "", "snapshot date (defaults to today)")
}

func (c *snapshotCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	asOf := time.Now()
	if c.date != "" {
		d, err := time.ParseInLocation(domain.DateLayout, c.date, time.Local)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -date %q: expected YYYY-MM-DD\n", c.date)
			return subcommands.ExitUsageError
		}
		asOf = d
	}

	container, _, _, err := openContainer(ctx)
	if err != nil {
		return fail(err)
	}
	defer container.Close()

	report, err := container.SnapshotEngine.Snapshot(ctx, asOf)
	var partial *domain.PartialBatchFailure
	if err != nil && !errors.As(err, &partial) {
		return fail(err)
	}

	fmt.Printf("Snapshot %s: %d/%d portfolios written in %s\n",
		report.Date, report.Succeeded, report.Total, report.Elapsed.Round(time.Millisecond))
	for id, msg := range report.Errors {
		fmt.Printf("  %s: %s\n", id, msg)
	}
	if partial != nil {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
