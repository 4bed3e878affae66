package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/JonMunkholm/csvquality/internal/core"
	"github.com/JonMunkholm/csvquality/internal/database"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database schema migrations",
		Long: `Apply pending schema migrations to the configured database.

SQLite databases are migrated automatically by every command; PostgreSQL
databases must be migrated with this command before first use.`,
		Example: `  # Migrate a PostgreSQL database
  dqcheck migrate --db-driver postgres --database-url postgres://localhost/dqcheck`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := getConfig(ctx)
			if cfg == nil {
				return errors.New("configuration not loaded")
			}

			store, err := database.Open(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Migrate(ctx); err != nil {
				return err
			}
			version, err := store.MigrationVersion(ctx)
			if err != nil {
				return fmt.Errorf("read migration version: %w", err)
			}

			slog.Info("migrations applied", "driver", cfg.Database.Driver, "version", version)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s schema at version %d\n", cfg.Database.Driver, version)
			return nil
		},
	}
}

func newRegisterCmd() *cobra.Command {
	var (
		name    string
		analyze bool
	)

	cmd := &cobra.Command{
		Use:   "register <file.csv>",
		Short: "Register a CSV file as a dataset",
		Long: `Copy a CSV file into the data directory and record it as a dataset with
status "uploaded". Use --analyze to run the quality checks right away.`,
		Example: `  # Register a file under its own name
  dqcheck register ./sales.csv

  # Register and analyze in one step
  dqcheck register ./sales.csv --name "Q3 sales" --analyze`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ds, err := a.svc.RegisterDataset(cmd.Context(), args[0], name)
			if err != nil {
				return err
			}
			if !analyze {
				return a.out.dataset(ds)
			}

			results := analyzeDatasets(cmd.Context(), a.svc, []core.Dataset{ds}, a.cfg.Analysis.MaxConcurrent)
			if err := a.out.analyses(results); err != nil {
				return err
			}
			return failures(results)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "dataset name (default: the file name)")
	cmd.Flags().BoolVar(&analyze, "analyze", false, "analyze the dataset after registering it")
	return cmd
}

func newAnalyzeCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "analyze [dataset-id...]",
		Short: "Run the quality checks for datasets",
		Long: `Run the missing-value, duplicate-row and statistics checks for one or more
datasets, replacing their stored check results and report.

Datasets are analyzed concurrently up to analysis.max_concurrent.`,
		Example: `  # Analyze one dataset
  dqcheck analyze 0b6f3c1e-7d0a-4f59-9a51-4f1f0f6c2d11

  # Re-analyze every registered dataset and print JSON
  dqcheck analyze --all -o json`,
		Args: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return errors.New("requires at least one dataset ID or --all")
			}
			if all && len(args) > 0 {
				return errors.New("dataset IDs cannot be combined with --all")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()
			datasets, err := resolveDatasets(ctx, a.svc, args, all)
			if err != nil {
				return err
			}
			if len(datasets) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "(0 datasets)")
				return nil
			}

			results := analyzeDatasets(ctx, a.svc, datasets, a.cfg.Analysis.MaxConcurrent)
			slog.Debug("analyses finished", "datasets", len(results), "limiter", a.svc.LimiterStatus())
			if err := a.out.analyses(results); err != nil {
				return err
			}
			return failures(results)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "analyze every registered dataset")
	return cmd
}

func newReportCmd() *cobra.Command {
	var summaryOnly bool

	cmd := &cobra.Command{
		Use:   "report <dataset-id>",
		Short: "Show the stored report of a dataset",
		Long: `Print the human-readable report of a dataset, followed by the stored
results of each check.`,
		Example: `  # Show the report and check tables
  dqcheck report 0b6f3c1e-7d0a-4f59-9a51-4f1f0f6c2d11

  # Report as YAML without check payloads
  dqcheck report 0b6f3c1e-7d0a-4f59-9a51-4f1f0f6c2d11 --summary-only -o yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()
			ds, err := a.svc.GetDataset(ctx, args[0])
			if err != nil {
				return err
			}
			rep, err := a.svc.GetReport(ctx, ds.ID)
			if err != nil {
				return err
			}

			var checks []core.CheckResult
			if !summaryOnly {
				if checks, err = a.svc.GetChecks(ctx, ds.ID); err != nil {
					return err
				}
			}
			return a.out.report(ds, rep, checks)
		},
	}

	cmd.Flags().BoolVar(&summaryOnly, "summary-only", false, "omit the per-check results")
	return cmd
}

func newDatasetsCmd() *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:     "datasets [dataset-id]",
		Aliases: []string{"ls"},
		Short:   "List datasets or show one dataset",
		Example: `  # List all datasets, newest first
  dqcheck datasets

  # List failed datasets
  dqcheck datasets --status failed`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != "" && !core.DatasetStatus(status).Valid() {
				return fmt.Errorf("invalid status %q (want uploaded, processing, completed or failed)", status)
			}

			a, cleanup, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()
			if len(args) == 1 {
				ds, err := a.svc.GetDataset(ctx, args[0])
				if err != nil {
					return err
				}
				return a.out.dataset(ds)
			}

			list, err := a.svc.ListDatasets(ctx)
			if err != nil {
				return err
			}
			if status != "" {
				list = filterStatus(list, core.DatasetStatus(status))
			}
			return a.out.datasets(list)
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "only show datasets with this status")
	return cmd
}

// drainTimeout bounds how long an interrupted analyze waits for running
// analyses before the store is closed.
const drainTimeout = 10 * time.Second

// statusSkipped marks datasets whose analysis never started.
const statusSkipped = "skipped"

// errInterrupted is recorded for datasets not started before a signal.
var errInterrupted = errors.New("analysis interrupted before it started")

// analysisResult is the outcome of one dataset's analysis.
type analysisResult struct {
	dataset core.Dataset
	status  string
	outcome *core.Outcome
	err     error
}

// analyzeDatasets runs the analyses concurrently, at most limit at a time,
// and returns the results in input order. When ctx is cancelled no further
// analyses start and running ones get up to drainTimeout to finish.
func analyzeDatasets(ctx context.Context, svc *core.Service, datasets []core.Dataset, limit int) []analysisResult {
	var (
		mu      sync.Mutex
		results = make([]analysisResult, len(datasets))
		done    = make([]bool, len(datasets))
	)

	finished := make(chan struct{})
	go func() {
		defer close(finished)

		var g errgroup.Group
		if limit > 0 {
			g.SetLimit(limit)
		}
		for i, ds := range datasets {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				out, err := svc.AnalyzeDataset(ctx, ds.ID)
				res := analysisResult{
					dataset: ds,
					status:  resultStatus(ctx, svc, ds.ID, err),
					outcome: out,
					err:     err,
				}
				mu.Lock()
				results[i], done[i] = res, true
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
	}()

	select {
	case <-finished:
	case <-ctx.Done():
		drainAnalyses(ctx, svc)
	}

	mu.Lock()
	defer mu.Unlock()
	out := make([]analysisResult, len(datasets))
	for i, ds := range datasets {
		if !done[i] {
			out[i] = analysisResult{dataset: ds, status: statusSkipped, err: fmt.Errorf("%w: %w", errInterrupted, context.Cause(ctx))}
			continue
		}
		out[i] = results[i]
	}
	return out
}

// drainAnalyses waits up to drainTimeout for analyses holding a slot.
func drainAnalyses(ctx context.Context, svc *core.Service) {
	slog.Warn("interrupted, waiting for running analyses", "timeout", drainTimeout, "limiter", svc.LimiterStatus())

	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
	defer cancel()
	if err := svc.WaitForAnalyses(drainCtx); err != nil {
		slog.Error("analyses still running after drain timeout", "error", err, "limiter", svc.LimiterStatus())
	}
}

// resultStatus is the status shown for one analysis. Runs turned away before
// starting are skipped; otherwise the stored status is reported, since a
// failed status write can leave a dataset processing.
func resultStatus(ctx context.Context, svc *core.Service, id string, err error) string {
	switch {
	case err == nil:
		return string(core.StatusCompleted)
	case errors.Is(err, core.ErrAnalysisInProgress), errors.Is(err, core.ErrTooManyAnalyses):
		return statusSkipped
	}

	ds, gerr := svc.GetDataset(context.WithoutCancel(ctx), id)
	if gerr != nil {
		return string(core.StatusFailed)
	}
	return string(ds.Status)
}

// resolveDatasets looks up the requested datasets, dropping repeated IDs.
func resolveDatasets(ctx context.Context, svc *core.Service, ids []string, all bool) ([]core.Dataset, error) {
	if all {
		return svc.ListDatasets(ctx)
	}

	seen := make(map[string]struct{}, len(ids))
	out := make([]core.Dataset, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		ds, err := svc.GetDataset(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, ds)
	}
	return out, nil
}

// failures joins the errors of failed analyses.
func failures(results []analysisResult) error {
	var errs []error
	for _, res := range results {
		if res.err != nil {
			errs = append(errs, res.err)
		}
	}
	if len(errs) == 1 {
		return errs[0]
	}
	return errors.Join(errs...)
}

func filterStatus(list []core.Dataset, status core.DatasetStatus) []core.Dataset {
	out := list[:0]
	for _, ds := range list {
		if ds.Status == status {
			out = append(out, ds)
		}
	}
	return out
}
