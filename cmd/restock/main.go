package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/andresuchdata/restockplan/internal/config"
	"github.com/andresuchdata/restockplan/internal/evaluation"
	"github.com/andresuchdata/restockplan/internal/pipeline"
	"github.com/andresuchdata/restockplan/internal/repository/postgres"
	"github.com/andresuchdata/restockplan/pkg/logger"
	"github.com/urfave/cli/v2"
)

// exitPartial is returned when some branch groups failed and others completed.
const exitPartial = 2

func main() {
	app := &cli.App{
		Name:  "restock",
		Usage: "Product evaluation and branch restock recommendations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Path to a YAML config file",
				EnvVars: []string{"RESTOCK_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "db-url",
				Usage:   "Postgres connection string; enables the database mirror",
				EnvVars: []string{"DATABASE_URL"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "evaluate",
				Usage:  "Rebuild the product evaluation table from the extracts",
				Action: evaluateAction,
			},
			{
				Name:   "recommend",
				Usage:  "Compute branch request lines and capacity from the stored evaluations",
				Flags:  recommendFlags(),
				Action: recommendAction,
			},
			{
				Name:   "run",
				Usage:  "Evaluate, then recommend for every branch group",
				Flags:  recommendFlags()[:1],
				Action: runAction,
			},
			{
				Name:  "migrate",
				Usage: "Apply the SQL migrations to the configured database",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "migrations-dir",
						Usage: "Directory containing SQL migration files",
						Value: "./scripts/migrations",
					},
				},
				Action: migrateAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Log.Error().Err(err).Msg("restock failed")
		if code, ok := err.(cli.ExitCoder); ok {
			os.Exit(code.ExitCode())
		}
		os.Exit(1)
	}
}

func recommendFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "groups",
			Usage: "Branch groups to compute; defaults to the whole registry",
		},
		&cli.BoolFlag{
			Name:  "retry-failed",
			Usage: "Recompute only the groups the latest tracked run did not complete",
		},
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if url := c.String("db-url"); url != "" {
		cfg.Database.URL = url
	}
	logger.SetFormat(cfg.App.LogFormat)
	logger.SetLevel(cfg.App.LogLevel)
	return cfg, nil
}

func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
}

func evaluateAction(c *cli.Context) error {
	ctx, cancel := signalContext(c)
	defer cancel()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	d, err := buildDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	in, err := d.restock.LoadInputs(ctx)
	if err != nil {
		return err
	}
	res, err := d.restock.Evaluate(ctx, in)
	if err != nil {
		return err
	}
	logEvaluation(res.RunKey, res.Report, len(res.Evaluations))
	return nil
}

func recommendAction(c *cli.Context) error {
	ctx, cancel := signalContext(c)
	defer cancel()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	d, err := buildDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	groups := c.StringSlice("groups")
	if c.Bool("retry-failed") {
		if d.runs == nil {
			return fmt.Errorf("--retry-failed needs a database to read run history")
		}
		groups, err = failedGroups(ctx, d.runs)
		if err != nil {
			return err
		}
		if len(groups) == 0 {
			logger.Log.Info().Msg("latest run has no failed groups; nothing to retry")
			return nil
		}
		logger.Log.Info().Strs("groups", groups).Msg("retrying failed groups")
	}

	in, err := d.restock.LoadInputs(ctx)
	if err != nil {
		return err
	}
	res, err := d.restock.Recommend(ctx, in, groups)
	if err != nil && res == nil {
		return err
	}
	return finish(res, err)
}

func runAction(c *cli.Context) error {
	ctx, cancel := signalContext(c)
	defer cancel()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	d, err := buildDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	res, err := d.restock.Run(ctx, c.StringSlice("groups"))
	if res == nil || res.Evaluation == nil {
		return err
	}
	logEvaluation(res.Evaluation.RunKey, res.Evaluation.Report, len(res.Evaluation.Evaluations))
	if res.Recommendation == nil {
		return err
	}
	return finish(res.Recommendation, err)
}

func migrateAction(c *cli.Context) error {
	ctx, cancel := signalContext(c)
	defer cancel()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if !cfg.Database.Enabled() {
		return fmt.Errorf("no database configured; set --db-url or DATABASE_URL")
	}
	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	return postgres.Migrate(ctx, db, c.String("migrations-dir"))
}

func logEvaluation(runKey string, rep evaluation.Report, count int) {
	logger.Log.Info().
		Str("run_key", runKey).
		Int("evaluations", count).
		Int("candidates", rep.Candidates).
		Int("dsi_imputed", rep.DSIImputed).
		Int("abc_imputed", rep.ABCImputed).
		Int("xyz_imputed", rep.XYZImputed).
		Int("slow_mover_overrides", rep.SlowMoverOverrides).
		Int("dropped", len(rep.Dropped)).
		Msg("evaluation finished")
}

// finish logs the groups that did not complete and maps a partial run to
// its own exit code.
func finish(res *pipeline.Result, err error) error {
	for _, j := range res.Failed() {
		logger.Log.Error().Str("group", j.Name).Str("status", string(j.Status)).Str("error", j.ErrorMessage).Msg("group not completed")
	}
	if err != nil {
		return err
	}
	switch res.Run.Status {
	case pipeline.StatusFailed:
		return cli.Exit(res.Run.ErrorMessage, 1)
	case pipeline.StatusPartial:
		return cli.Exit(res.Run.ErrorMessage, exitPartial)
	}
	return nil
}
