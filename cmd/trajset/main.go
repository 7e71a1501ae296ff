package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/san-kum/trajset/internal/automation"
	"github.com/san-kum/trajset/internal/config"
	"github.com/san-kum/trajset/internal/dataset"
	"github.com/san-kum/trajset/internal/dynamo"
	"github.com/san-kum/trajset/internal/env"
	"github.com/san-kum/trajset/internal/eval"
	"github.com/san-kum/trajset/internal/metrics"
	"github.com/san-kum/trajset/internal/storage"
	"github.com/san-kum/trajset/internal/tui"
	"github.com/san-kum/trajset/internal/viz"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
)

var (
	dataDir    string
	storeKind  string
	horizon    int
	seed       int64
	samples    int
	upperBound float64
	workers    int
	integrator string
	maxSteps   int
	configFile string
	preset     string
	verbose    bool
	useTUI     bool
	noSave     bool
	plotOut    string
	plotBins   int
	sweepMin   float64
	sweepMax   float64
	sweepSteps int
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "trajset",
		Short:        "score random action trajectories and build datasets from them",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", config.DefaultDataDir, "data directory")
	rootCmd.PersistentFlags().StringVar(&storeKind, "store", config.DefaultStore, "store backend (file, sqlite)")

	buildCmd := &cobra.Command{
		Use:   "build [env]",
		Short: "sample, score and filter a trajectory dataset",
		Args:  cobra.MaximumNArgs(1),
		RunE:  buildDataset,
	}
	buildCmd.Flags().IntVar(&horizon, "horizon", config.DefaultHorizon, "trajectory length")
	buildCmd.Flags().Int64Var(&seed, "seed", config.DefaultSeed, "sampling seed")
	buildCmd.Flags().IntVar(&samples, "samples", config.DefaultSamples, "number of trajectories to sample")
	buildCmd.Flags().Float64Var(&upperBound, "upper-bound", 0, "drop trajectories scoring above this")
	buildCmd.Flags().IntVar(&workers, "workers", config.DefaultWorkers, "parallel evaluation workers (0 = all cpus)")
	buildCmd.Flags().StringVar(&integrator, "integrator", "rk4", "integrator")
	buildCmd.Flags().IntVar(&maxSteps, "max-steps", 0, "episode step limit (0 = env default)")
	buildCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	buildCmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	buildCmd.Flags().BoolVar(&verbose, "verbose", true, "print the dataset report")
	buildCmd.Flags().BoolVar(&useTUI, "tui", false, "show a progress view while building")
	buildCmd.Flags().BoolVar(&noSave, "no-save", false, "do not persist the dataset")

	evalCmd := &cobra.Command{
		Use:   "eval [env] [actions...]",
		Short: "score a single trajectory of actions in [0, 1)",
		Args:  cobra.MinimumNArgs(2),
		RunE:  evalTrajectory,
	}
	evalCmd.Flags().StringVar(&integrator, "integrator", "rk4", "integrator")
	evalCmd.Flags().IntVar(&maxSteps, "max-steps", 0, "episode step limit (0 = env default)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list datasets",
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "summarize a dataset",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "save a score histogram as png",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&plotOut, "out", "", "output file (default figures/<run_id>.png)")
	plotCmd.Flags().IntVar(&plotBins, "bins", viz.DefaultBins, "histogram bins")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export a dataset to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [env]",
		Short: "list available presets",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listPresets,
	}

	envsCmd := &cobra.Command{
		Use:   "envs",
		Short: "list environments",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range env.NewRegistry().List() {
				fmt.Printf("  %s\n", name)
			}
			return nil
		},
	}

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run and save every build in a scenario file",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep [run_id]",
		Short: "show how many trajectories survive a range of upper bounds",
		Args:  cobra.ExactArgs(1),
		RunE:  sweepBounds,
	}
	sweepCmd.Flags().Float64Var(&sweepMin, "min", 0, "lowest bound")
	sweepCmd.Flags().Float64Var(&sweepMax, "max", 1, "highest bound")
	sweepCmd.Flags().IntVar(&sweepSteps, "steps", 11, "number of bounds")

	rootCmd.AddCommand(buildCmd, evalCmd, listCmd, showCmd, plotCmd, exportJSONCmd, presetsCmd, envsCmd, scenarioCmd, sweepCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfig layers defaults, preset, config file and explicitly set
// flags, in that order.
func resolveConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if len(args) > 0 {
		cfg.Env = args[0]
	}

	if preset != "" {
		p := config.GetPreset(cfg.Env, preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(cfg.Env))
		}
		p.Verbose = cfg.Verbose
		p.Workers = cfg.Workers
		p.Store = cfg.Store
		cfg = p
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
		if len(args) > 0 {
			cfg.Env = args[0]
		}
	}

	flags := cmd.Flags()
	if flags.Changed("horizon") {
		cfg.Horizon = horizon
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("samples") {
		cfg.Samples = samples
	}
	if flags.Changed("upper-bound") {
		ub := upperBound
		cfg.UpperBound = &ub
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	if flags.Changed("integrator") {
		cfg.Integrator = integrator
	}
	if flags.Changed("max-steps") {
		cfg.EnvParams.MaxSteps = maxSteps
	}
	if flags.Changed("verbose") {
		cfg.Verbose = verbose
	}
	if flags.Changed("data") || cfg.Store.Path == "" {
		cfg.Store.Path = dataDir
	}
	if flags.Changed("store") || cfg.Store.Kind == "" {
		cfg.Store.Kind = storeKind
	}

	return cfg, cfg.Validate()
}

func openStore(ctx context.Context, kind, dir string) (storage.Store, error) {
	path := dir
	if kind == "sqlite" {
		path = filepath.Join(dir, "trajset.db")
	}

	st, err := storage.NewStore(kind, path)
	if err != nil {
		return nil, err
	}
	if err := st.Init(ctx); err != nil {
		return nil, err
	}
	return st, nil
}

func buildDataset(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}

	factory, err := env.NewRegistry().Factory(cfg.Env, cfg.EnvOptions())
	if err != nil {
		return err
	}

	opts := dataset.Options{
		Horizon:    cfg.Horizon,
		Seed:       cfg.Seed,
		Samples:    cfg.Samples,
		UpperBound: cfg.UpperBound,
	}
	if cfg.Verbose && !useTUI {
		opts.Report = os.Stdout
	}

	var collected []dynamo.Metric
	var ds *dataset.Dataset

	run := func(progress func(done, total int)) error {
		opts.Progress = progress
		if cfg.Workers == 1 {
			collected = metrics.Default()
			opts.Metrics = collected
			e, err := factory()
			if err != nil {
				return err
			}
			ds, err = dataset.Build(e, opts)
			return err
		}
		var err error
		ds, err = dataset.BuildParallel(ctx, factory, cfg.Workers, opts)
		return err
	}

	fmt.Printf("building %s dataset: %s trajectories of length %d\n",
		cfg.Env, viz.Count(cfg.Samples), cfg.Horizon)
	start := time.Now()

	if useTUI {
		err = tui.Run(fmt.Sprintf("building %s dataset", cfg.Env), cfg.Samples, run)
	} else {
		err = run(nil)
	}
	if err != nil {
		return err
	}

	elapsed := time.Since(start)
	if cfg.Verbose && useTUI {
		ds.Fprint(os.Stdout, cfg.Samples)
	}
	fmt.Printf("completed in %v\n", elapsed)

	values := make(map[string]float64, len(collected))
	for _, m := range collected {
		values[m.Name()] = m.Value()
	}
	if len(values) > 0 {
		fmt.Println("\nmetrics:")
		for _, name := range sortedKeys(values) {
			fmt.Printf("  %s: %.6f\n", name, values[name])
		}
	}

	if ds.Len() == 0 {
		fmt.Println(viz.Warning.Render("no trajectories kept"))
	}

	if noSave {
		return nil
	}

	st, err := openStore(ctx, cfg.Store.Kind, cfg.Store.Path)
	if err != nil {
		return err
	}
	defer storage.CloseIfSupported(st)

	runID, err := st.Save(ctx, storage.RunMetadata{
		Env:        cfg.Env,
		Seed:       cfg.Seed,
		Requested:  cfg.Samples,
		UpperBound: cfg.UpperBound,
		Integrator: cfg.Integrator,
		Metrics:    values,
	}, ds)
	if err != nil {
		return err
	}

	fmt.Printf("run id: %s\n", viz.Success.Render(runID))
	return nil
}

func evalTrajectory(cmd *cobra.Command, args []string) error {
	name := args[0]

	actions := make([]float64, 0, len(args)-1)
	for _, s := range args[1:] {
		a, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid action %q: %w", s, err)
		}
		actions = append(actions, a)
	}

	e, err := env.NewRegistry().Make(name, env.Options{Integrator: integrator, MaxSteps: maxSteps})
	if err != nil {
		return err
	}

	ev := eval.New(e, eval.WithMetrics(metrics.Default()...))
	scores, err := ev.Trajectories(mat.NewDense(1, len(actions), actions))
	if err != nil {
		return err
	}

	fmt.Println(viz.Metric("score", fmt.Sprintf("%.6f", scores[0])))
	values := ev.Metrics()
	for _, key := range sortedKeys(values) {
		fmt.Println(viz.Metric(key, fmt.Sprintf("%.6f", values[key])))
	}
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	st, err := openStore(ctx, storeKind, dataDir)
	if err != nil {
		return err
	}
	defer storage.CloseIfSupported(st)

	runs, err := st.List(ctx)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tENV\tTIME\tHORIZON\tKEPT\tREQUESTED\tMEAN")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%.3f\n",
			run.ID,
			run.Env,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Horizon,
			viz.Count(run.Kept),
			viz.Count(run.Requested),
			run.Summary.Mean,
		)
	}

	return w.Flush()
}

func loadRun(ctx context.Context, runID string) (*storage.RunMetadata, *dataset.Dataset, error) {
	st, err := openStore(ctx, storeKind, dataDir)
	if err != nil {
		return nil, nil, err
	}
	defer storage.CloseIfSupported(st)

	meta, err := st.Load(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	ds, err := st.LoadDataset(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	return meta, ds, nil
}

func showRun(cmd *cobra.Command, args []string) error {
	meta, ds, err := loadRun(context.Background(), args[0])
	if err != nil {
		return err
	}

	fmt.Println(viz.Title.Render(meta.ID))
	fmt.Println(viz.Metric("env", meta.Env))
	fmt.Println(viz.Metric("created", meta.Timestamp.Format("2006-01-02 15:04:05")))
	fmt.Println(viz.Metric("seed", strconv.FormatInt(meta.Seed, 10)))
	fmt.Println(viz.Metric("horizon", strconv.Itoa(ds.Horizon())))
	fmt.Println(viz.Metric("kept", viz.Count(ds.Len())+" of "+viz.Count(meta.Requested)))
	if meta.UpperBound != nil {
		fmt.Println(viz.Metric("upper bound", fmt.Sprintf("%.3f", *meta.UpperBound)))
	}

	if ds.Len() == 0 {
		fmt.Println(viz.Warning.Render("dataset is empty"))
		return nil
	}

	fmt.Println(viz.Metric("scores", ds.Summary().String()))
	fmt.Println(viz.Sparkline(ds.Scores(), 60))
	fmt.Println()

	chart, err := viz.RenderHistogram(ds.Scores(), viz.DefaultBins, "score distribution")
	if err != nil {
		return err
	}
	fmt.Println(chart)
	return nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	meta, ds, err := loadRun(context.Background(), runID)
	if err != nil {
		return err
	}

	out := plotOut
	if out == "" {
		out = filepath.Join("figures", runID+".png")
	}

	title := fmt.Sprintf("%s scores (n=%d)", meta.Env, ds.Len())
	if err := viz.SaveHistogram(out, ds.Scores(), plotBins, title); err != nil {
		return err
	}

	fmt.Printf("saved %s\n", out)
	return nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	meta, ds, err := loadRun(context.Background(), args[0])
	if err != nil {
		return err
	}
	return storage.ExportJSON(os.Stdout, meta, ds)
}

func runScenario(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}

	st, err := openStore(ctx, storeKind, dataDir)
	if err != nil {
		return err
	}
	defer storage.CloseIfSupported(st)

	if sc.Name != "" {
		fmt.Println(viz.Title.Render(sc.Name))
	}

	results, err := automation.RunScenario(ctx, sc, env.NewRegistry(), os.Stdout)
	if err != nil {
		return err
	}

	for _, res := range results {
		runID, err := st.Save(ctx, storage.RunMetadata{
			ID:         res.Step.SaveAs,
			Env:        res.Step.Env,
			Seed:       res.Step.Seed,
			Requested:  res.Step.Samples,
			UpperBound: res.Step.UpperBound,
			Integrator: res.Step.Integrator,
		}, res.Dataset)
		if err != nil {
			return err
		}
		fmt.Printf("run id: %s\n", viz.Success.Render(runID))
	}
	return nil
}

func sweepBounds(cmd *cobra.Command, args []string) error {
	_, ds, err := loadRun(context.Background(), args[0])
	if err != nil {
		return err
	}

	results, err := automation.RunSweep(ds, automation.BoundSweep{
		Min:      sweepMin,
		Max:      sweepMax,
		NumSteps: sweepSteps,
	})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BOUND\tKEPT\tFRACTION\tMEAN")
	for _, r := range results {
		frac := 0.0
		if ds.Len() > 0 {
			frac = float64(r.Kept) / float64(ds.Len())
		}
		fmt.Fprintf(w, "%.3f\t%s\t%.3f\t%.3f\n", r.Bound, viz.Count(r.Kept), frac, r.Summary.Mean)
	}
	return w.Flush()
}

func listPresets(cmd *cobra.Command, args []string) error {
	envs := env.NewRegistry().List()
	if len(args) > 0 {
		envs = args
	}

	for _, name := range envs {
		presets := config.ListPresets(name)
		if len(presets) == 0 {
			fmt.Printf("no presets for env: %s\n", name)
			continue
		}
		fmt.Printf("presets for %s:\n", name)
		for _, p := range presets {
			fmt.Printf("  %s\n", p)
		}
	}
	return nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
