package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/sitestock/sitestock/cmd/sitestockctl/cli"
	"github.com/sitestock/sitestock/internal/app"
	"github.com/sitestock/sitestock/internal/platform/db"
	"github.com/sitestock/sitestock/jobs"
	"github.com/sitestock/sitestock/migrations"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, cli.ErrUsage)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}
	logger := app.NewLogger(cfg)

	switch args[0] {
	case "migrate":
		pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
		if err != nil {
			logger.Error("connect postgres", slog.Any("error", err))
			return 1
		}
		defer pool.Close()
		return cli.MigrateCommand(ctx, func(ctx context.Context) ([]string, error) {
			return migrations.Apply(ctx, pool)
		}, os.Stdout, os.Stderr)

	case "scan":
		opts, ok := parseJobsFlags("scan", args[1:])
		if !ok {
			return 2
		}
		pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
		if err != nil {
			logger.Error("connect postgres", slog.Any("error", err))
			return 1
		}
		defer pool.Close()
		scanner := jobs.NewIntegrityScanJob(pool, logger, nil)
		return cli.NewJobsCLI(nil, nil, scanner).Scan(ctx, opts)

	case "jobs":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, cli.ErrUsage)
			return 2
		}
		opts, ok := parseJobsFlags("jobs "+args[1], args[2:])
		if !ok {
			return 2
		}
		redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
		switch args[1] {
		case "trigger":
			client, err := jobs.NewClient(redisOpts)
			if err != nil {
				logger.Error("asynq client", slog.Any("error", err))
				return 1
			}
			defer func() { _ = client.Close() }()
			return cli.NewJobsCLI(client, nil, nil).Trigger(ctx, opts)
		case "stats":
			inspector := asynq.NewInspector(redisOpts)
			defer func() { _ = inspector.Close() }()
			return cli.NewJobsCLI(nil, inspector, nil).Stats(ctx, opts)
		}
	}
	fmt.Fprintln(os.Stderr, cli.ErrUsage)
	return 2
}

func parseJobsFlags(name string, args []string) (cli.JobsOptions, bool) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	checks := fs.String("checks", "", "comma separated integrity checks (default all)")
	asJSON := fs.Bool("json", false, "emit JSON output")
	if err := fs.Parse(args); err != nil {
		return cli.JobsOptions{}, false
	}
	return cli.JobsOptions{
		Checks:     cli.ParseChecks(*checks),
		JSONOutput: *asJSON,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
	}, true
}
