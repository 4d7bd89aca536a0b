// Command wealthctl runs portfolio operations from the shell: snapshots, rate
// refreshes, consolidation, reports and backups. It reads the same
// environment configuration as the server and opens the same databases.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	commander.Register(&snapshotCmd{}, "history")
	commander.Register(&reportCmd{}, "history")
	commander.Register(&ratesCmd{}, "currency")
	commander.Register(&consolidateCmd{}, "currency")
	commander.Register(&backupCmd{}, "maintenance")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
