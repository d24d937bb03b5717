// Command budgetpipe runs the transaction pipeline over a ledger file.
//
//	budgetpipe -in transactions.csv -rules rules.yaml -out clean.json
//
// The input and output formats follow the file extension (.csv or JSON).
// With -store the run is also recorded in the SQLite run store.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"budgetpipe/internal/cli"
	"budgetpipe/internal/config"
	"budgetpipe/internal/core"
	"budgetpipe/internal/ledger"
	"budgetpipe/internal/log"
	"budgetpipe/internal/pipeline"
	"budgetpipe/internal/rules"
	"budgetpipe/internal/services"
	"budgetpipe/internal/storage"
)

type options struct {
	in        string
	out       string
	outFormat string
	rulesPath string
	store     bool
	dbPath    string
}

func main() {
	cli.LoadEnvFile()
	defaults := config.Load()

	var opts options
	flag.StringVar(&opts.in, "in", "", "input ledger file (.csv or .json); - reads JSON from stdin")
	flag.StringVar(&opts.out, "out", "-", "output file; - writes to stdout")
	flag.StringVar(&opts.outFormat, "format", "", "output format (json or csv); defaults to the output extension")
	flag.StringVar(&opts.rulesPath, "rules", defaults.RulesPath, "rules file (.json, .yaml or .yml)")
	flag.BoolVar(&opts.store, "store", false, "record the run in the SQLite run store")
	flag.StringVar(&opts.dbPath, "db", defaults.SQLiteDBPath, "SQLite database path used with -store")
	flag.Parse()

	// Logs go to stderr so stdout stays clean for the table.
	logCfg := log.DefaultConfig()
	logCfg.Output = os.Stderr
	if lvl, err := log.ParseLevel(defaults.LogLevel); err == nil {
		logCfg.Level = lvl
	}
	logger := log.New(logCfg)
	log.SetDefault(logger)

	if err := run(context.Background(), opts, os.Stdin, os.Stdout, logger); err != nil {
		fmt.Fprintln(os.Stderr, "budgetpipe:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, stdin io.Reader, stdout io.Writer, logger *log.Logger) error {
	if opts.in == "" {
		return fmt.Errorf("-in is required")
	}

	cfg, err := rules.Load(opts.rulesPath)
	if err != nil {
		return err
	}

	var table core.Table
	if opts.in == "-" {
		table, err = ledger.ReadJSON(stdin)
	} else {
		table, err = ledger.ReadFile(opts.in)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", opts.in, err)
	}

	out, stats, err := transform(ctx, opts, table, cfg, logger)
	if err != nil {
		return err
	}
	logger.WithComponent(log.ComponentPipeline).Info("Pipeline finished",
		append(log.NewFields().
			WithRunStats(stats.Input, stats.RemovedByAccount, stats.RemovedByTerm, stats.RemovedByTransform, stats.Recategorized, stats.Output).
			ToSlice(), log.FieldRulesDigest, cfg.Digest)...)

	format := ledger.FormatFromPath(opts.out)
	if opts.outFormat != "" {
		if format, err = ledger.ParseFormat(opts.outFormat); err != nil {
			return err
		}
	}
	if opts.out == "-" {
		return ledger.Write(stdout, out, format)
	}
	f, err := os.Create(opts.out)
	if err != nil {
		return err
	}
	if err := ledger.Write(f, out, format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// transform runs the pipeline directly, or through the run service when the
// run should be stored.
func transform(ctx context.Context, opts options, table core.Table, cfg *rules.Config, logger *log.Logger) (core.Table, pipeline.Stats, error) {
	if !opts.store {
		res, err := pipeline.Run(table, cfg)
		if err != nil {
			return nil, pipeline.Stats{}, err
		}
		return res.Table, res.Stats, nil
	}

	repo, err := storage.NewSQLiteRepository(opts.dbPath)
	if err != nil {
		return nil, pipeline.Stats{}, fmt.Errorf("open run store: %w", err)
	}
	defer repo.Close()

	outcome, err := services.NewPipelineService(repo, nil).Run(ctx, table, cfg)
	if err != nil {
		return nil, pipeline.Stats{}, err
	}
	logger.Info("Run stored", log.FieldRunID, outcome.Run.ID, "db", opts.dbPath)
	return outcome.Table, outcome.Run.Stats, nil
}
