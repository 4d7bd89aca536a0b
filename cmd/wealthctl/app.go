package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aristath/wealth/internal/config"
	"github.com/aristath/wealth/internal/di"
	"github.com/aristath/wealth/pkg/logger"
	"github.com/google/subcommands"
	"github.com/rs/zerolog"
)

// openContainer loads configuration and wires every dependency. Logs go to
// stderr so command output stays clean.
func openContainer(ctx context.Context) (*di.Container, *config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, zerolog.Nop(), err
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: true, Output: os.Stderr})

	container, _, err := di.Wire(ctx, cfg, log)
	if err != nil {
		return nil, nil, log, err
	}
	return container, cfg, log, nil
}

func fail(err error) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return subcommands.ExitFailure
}
