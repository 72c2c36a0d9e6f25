package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"carboncore/internal/adapters/runs"
	"carboncore/internal/blob"
	"carboncore/internal/config"
	"carboncore/internal/core"
	"carboncore/internal/processor"
	"carboncore/pkg/domain"
)

type rootOptions struct {
	envFile string
	verbose bool
	stdout  io.Writer
	stderr  io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{stdout: stdout, stderr: stderr}
	root := &cobra.Command{
		Use:           "carbonsim",
		Short:         "Simulate harvested wood carbon flows",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadEnv(opts.envFile)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file to load; a missing file is ignored")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log realization stages at debug level")

	root.AddCommand(newRunCmd(opts), newValidateCmd(opts), newGraphCmd(opts), newBatchCmd(opts))
	return root
}

func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func (o *rootOptions) logger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if o.verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

func loadScenario(path string) (*config.File, *core.Scenario, error) {
	if path == "" {
		return nil, nil, errors.New("--config is required")
	}
	f, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	sc, err := f.Scenario()
	if err != nil {
		return nil, nil, err
	}
	return f, sc, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type runFlags struct {
	config       string
	realizations int
	parallelism  int
	runID        string
	metricsAddr  string
	tracePath    string
}

func newRunCmd(root *rootOptions) *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the Monte Carlo realizations of a configuration and store the results",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSimulation(cmd.Context(), root, flags)
		},
	}
	cmd.Flags().StringVarP(&flags.config, "config", "c", "", "run configuration file")
	cmd.Flags().IntVarP(&flags.realizations, "realizations", "n", 0, "override the configured number of realizations")
	cmd.Flags().IntVarP(&flags.parallelism, "parallelism", "p", 0, "override the configured parallelism")
	cmd.Flags().StringVar(&flags.runID, "run-id", "", "run identifier; generated when empty")
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address during the run")
	cmd.Flags().StringVar(&flags.tracePath, "trace", "", "write JSON-lines spans to this file")
	return cmd
}

func runSimulation(ctx context.Context, root *rootOptions, flags runFlags) error {
	f, sc, err := loadScenario(flags.config)
	if err != nil {
		return err
	}
	log, err := root.logger()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	store, err := core.OpenResultStoreWith(ctx, f.StorageConfig(core.StorageConfigFromEnv()))
	if err != nil {
		return fmt.Errorf("open result store: %w", err)
	}
	defer func() { _ = core.CloseStore(store) }()

	registry := prometheus.NewRegistry()
	metrics, err := core.NewPrometheusMetricsRecorder(registry)
	if err != nil {
		return err
	}
	if flags.metricsAddr != "" {
		srv := &http.Server{
			Addr:              flags.metricsAddr,
			Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server stopped", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	opts := []core.Option{
		core.WithLogger(core.NewZapLogger(log)),
		core.WithMetricsRecorder(metrics),
		core.WithParallelism(pick(flags.parallelism, f.Parallelism)),
	}
	if flags.tracePath != "" {
		traceFile, err := os.Create(flags.tracePath)
		if err != nil {
			return fmt.Errorf("create trace file: %w", err)
		}
		defer traceFile.Close()
		opts = append(opts, core.WithTracer(core.NewJSONTracer(traceFile)))
	}
	svc := core.NewService(store, opts...)

	n := pick(flags.realizations, f.Realizations)
	var summary core.RunSummary
	if flags.runID != "" {
		summary, err = svc.RunWithID(ctx, flags.runID, sc, n)
	} else {
		summary, err = svc.Run(ctx, sc, n)
	}
	if err != nil {
		return err
	}
	return writeJSON(root.stdout, summary)
}

func pick(override, configured int) int {
	if override > 0 {
		return override
	}
	return configured
}

func newValidateCmd(root *rootOptions) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a configuration against the scenario and processor graph rules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, sc, err := loadScenario(path)
			if err != nil {
				return err
			}
			res, err := core.ValidateScenario(cmd.Context(), sc)
			printViolations(root.stdout, res)
			if err != nil {
				var rve domain.RuleViolationError
				if errors.As(err, &rve) {
					return errors.New("configuration has blocking violations")
				}
				return err
			}
			fmt.Fprintf(root.stdout, "%s: ok\n", sc.Name)
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "config", "c", "", "run configuration file")
	return cmd
}

func printViolations(w io.Writer, res domain.Result) {
	for _, v := range res.Violations {
		fmt.Fprintf(w, "%s\t%s\t%s: %s\n", strings.ToUpper(string(v.Severity)), v.Rule, v.Subject, v.Message)
	}
}

func newGraphCmd(root *rootOptions) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the processor graph of a configuration",
		RunE: func(_ *cobra.Command, _ []string) error {
			var (
				graph *processor.Graph
				err   error
			)
			if path == "" {
				graph, err = processor.ReferenceGraph()
			} else {
				var f *config.File
				if f, err = config.Load(path); err == nil {
					graph, err = f.BuildGraph()
				}
			}
			if err != nil {
				return err
			}
			return printGraph(root.stdout, graph)
		},
	}
	cmd.Flags().StringVarP(&path, "config", "c", "", "run configuration file; the reference graph when empty")
	return cmd
}

func printGraph(w io.Writer, g *processor.Graph) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tKIND\tPARENT\tINTAKE\tYIELD\tEMISSIONS")
	for _, n := range g.Nodes() {
		parent := "-"
		if !n.IsRoot() {
			if p, ok := g.Node(n.Parent); ok {
				parent = p.Name
			}
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%g\t%g\t%g\n", n.ID, n.Name, processor.KindName(n.Kind), parent, n.Intake, n.Yield, n.EmissionsPerMg)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, c := range g.Categories() {
		id, err := g.RootFor(c)
		if err != nil {
			return err
		}
		n, _ := g.Node(id)
		fmt.Fprintf(w, "bind %s -> %s\n", c, n.Name)
	}
	return nil
}

func newBatchCmd(root *rootOptions) *cobra.Command {
	var parallelism int
	cmd := &cobra.Command{
		Use:   "batch CONFIG...",
		Short: "Queue several configurations and run them one after another",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd.Context(), root, args, parallelism)
		},
	}
	cmd.Flags().IntVarP(&parallelism, "parallelism", "p", 1, "realizations run at once within each run")
	return cmd
}

func runBatch(ctx context.Context, root *rootOptions, paths []string, parallelism int) error {
	inputs := make([]runs.Input, 0, len(paths))
	for _, p := range paths {
		f, sc, err := loadScenario(p)
		if err != nil {
			return err
		}
		inputs = append(inputs, runs.Input{Scenario: sc, Realizations: f.Realizations, RequestedBy: "carbonsim", Reason: p})
	}
	log, err := root.logger()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	store, err := core.OpenResultStore(ctx)
	if err != nil {
		return fmt.Errorf("open result store: %w", err)
	}
	defer func() { _ = core.CloseStore(store) }()

	var summaries blob.Store
	if os.Getenv("CARBONCORE_BLOB_DRIVER") != "" {
		if summaries, err = blob.Open(ctx); err != nil {
			return fmt.Errorf("open summary store: %w", err)
		}
	}

	svc := core.NewService(store, core.WithLogger(core.NewZapLogger(log)), core.WithParallelism(parallelism))
	worker := runs.NewWorker(svc, summaries, nil)
	worker.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = worker.Stop(stopCtx)
	}()

	ids := make([]string, 0, len(inputs))
	for _, in := range inputs {
		rec, err := worker.Enqueue(ctx, in)
		if err != nil {
			return err
		}
		ids = append(ids, rec.ID)
	}

	records, err := waitForRuns(ctx, worker, ids)
	if err != nil {
		return err
	}
	if err := writeJSON(root.stdout, records); err != nil {
		return err
	}
	for _, r := range records {
		if r.Status == runs.StatusFailed {
			return fmt.Errorf("run %s (%s) failed: %s", r.ID, r.Reason, r.Error)
		}
	}
	return nil
}

func waitForRuns(ctx context.Context, w *runs.Worker, ids []string) ([]runs.Record, error) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		records := make([]runs.Record, 0, len(ids))
		for _, id := range ids {
			rec, ok := w.Get(id)
			if !ok {
				return nil, fmt.Errorf("run %s disappeared", id)
			}
			if rec.Status == runs.StatusSucceeded || rec.Status == runs.StatusFailed {
				records = append(records, rec)
			}
		}
		if len(records) == len(ids) {
			return records, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
