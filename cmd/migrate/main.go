// Command migrate applies or rolls back the journal schema.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/coachpo/algohost/internal/infra/config"
	"github.com/coachpo/algohost/internal/infra/persistence/migrations"
	"github.com/coachpo/algohost/internal/observability"
)

const defaultTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		dsn     = flag.String("database", "", "PostgreSQL DSN (defaults to ALGOHOST_JOURNAL_DSN)")
		dir     = flag.String("path", migrations.Embedded, "Directory containing SQL migrations (default: embedded)")
		timeout = flag.Duration("timeout", defaultTimeout, "Maximum time to wait for database connectivity")
		quiet   = flag.Bool("quiet", false, "Suppress informational logs")
	)
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	target := strings.TrimSpace(*dsn)
	if target == "" {
		target = strings.TrimSpace(os.Getenv(config.EnvPrefix + "JOURNAL_DSN"))
	}
	if target == "" {
		return errors.New("-database flag or " + config.EnvPrefix + "JOURNAL_DSN is required")
	}

	args := flag.Args()
	if len(args) == 0 {
		return errors.New("command required (up|down)")
	}

	level := "info"
	if *quiet {
		level = "error"
	}
	logger := observability.NewLogger(observability.LogOptions{Level: level, Console: true})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch args[0] {
	case "up":
		return migrations.Apply(ctx, target, *dir, logger)
	case "down":
		steps := 1
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid down steps %q: %w", args[1], err)
			}
			steps = n
		}
		return migrations.Rollback(ctx, target, *dir, steps, logger)
	default:
		return fmt.Errorf("unknown command %q (expected up or down)", args[0])
	}
}
