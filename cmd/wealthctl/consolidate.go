package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"
)

type consolidateCmd struct{}

func (*consolidateCmd) Name() string     { return "consolidate" }
func (*consolidateCmd) Synopsis() string { return "revalue global assets in the reporting currency" }
func (*consolidateCmd) Usage() string {
	return `wealthctl consolidate

  Refreshes stale rates, then rewrites every global asset whose reporting
  value changed by more than the materiality threshold.
`
}

func (*consolidateCmd) SetFlags(*flag.FlagSet) {}

func (*consolidateCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	container, _, _, err := openContainer(ctx)
	if err != nil {
		return fail(err)
	}
	defer container.Close()

	if err := container.RateCache.EnsureFresh(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v (consolidating against cached rates)\n", err)
	}

	report, err := container.Consolidator.ConsolidateAll(ctx)
	if err != nil {
		return fail(err)
	}

	fmt.Printf("Checked %d assets: %d updated, %d unchanged, %d skipped, %d on stale rates (%s)\n",
		report.Checked, report.Updated, report.Unchanged, report.Skipped, report.Stale,
		report.Elapsed.Round(time.Millisecond))
	return subcommands.ExitSuccess
}
