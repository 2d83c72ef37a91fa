package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/copyleftdev/cocogo/internal/experiment"
	"github.com/copyleftdev/cocogo/internal/solver"
)

var (
	suites           []string
	suiteInstance    string
	suiteOptions     string
	observerName     string
	observerOptions  string
	solverName       string
	budgetMultiplier int
	seed             int64
	resultRoot       string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a solver over whole suites",
	Long: `Runs the solver on every problem of each suite with an evaluation budget of
budget-multiplier times the dimension. Suites run concurrently, each with its
own observer and result folder.`,
	RunE: runExperiment,
}

func init() {
	runCmd.Flags().StringSliceVar(&suites, "suite", nil, "Suite name, repeatable or comma separated (default from COCO_SUITE)")
	runCmd.Flags().StringVar(&suiteInstance, "suite-instance", "", "Suite instance string, e.g. \"instances: 1-5\"")
	runCmd.Flags().StringVar(&suiteOptions, "suite-options", "", "Suite filters, e.g. \"dimensions: 2,5 function_indices: 1-3\"")
	runCmd.Flags().StringVar(&observerName, "observer", "", "Observer name: bbob, toy or no-observer")
	runCmd.Flags().StringVar(&observerOptions, "observer-options", "", "Observer options string")
	runCmd.Flags().StringVar(&solverName, "solver", "", "Solver: "+strings.Join(solver.Names(), ", "))
	runCmd.Flags().IntVar(&budgetMultiplier, "budget-multiplier", 0, "Evaluation budget per dimension")
	runCmd.Flags().Int64Var(&seed, "seed", 0, "Random seed")
	runCmd.Flags().StringVar(&resultRoot, "result-root", "", "Directory holding the result folders")

	rootCmd.AddCommand(runCmd)
}

// experimentConfig merges the flags over the environment configuration.
func experimentConfig(cmd *cobra.Command) experiment.Config {
	bench := cfg.Benchmark
	ec := experiment.Config{
		Suites:           suites,
		SuiteInstance:    bench.SuiteInstance,
		SuiteOptions:     bench.SuiteOptions,
		Observer:         bench.Observer,
		ObserverOptions:  bench.ObserverOptions,
		ResultRoot:       bench.ResultRoot,
		Solver:           bench.Solver,
		BudgetMultiplier: bench.BudgetMultiplier,
		Seed:             bench.Seed,
		Logger:           logger,
	}
	if len(ec.Suites) == 0 {
		ec.Suites = []string{bench.Suite}
	}

	flags := cmd.Flags()
	if flags.Changed("suite-instance") {
		ec.SuiteInstance = suiteInstance
	}
	if flags.Changed("suite-options") {
		ec.SuiteOptions = suiteOptions
	}
	if flags.Changed("observer") {
		ec.Observer = observerName
	}
	if flags.Changed("observer-options") {
		ec.ObserverOptions = observerOptions
	}
	if flags.Changed("solver") {
		ec.Solver = solverName
	}
	if flags.Changed("budget-multiplier") {
		ec.BudgetMultiplier = budgetMultiplier
	}
	if flags.Changed("seed") {
		ec.Seed = seed
	}
	if flags.Changed("result-root") {
		ec.ResultRoot = resultRoot
	}
	return ec
}

func runExperiment(cmd *cobra.Command, args []string) error {
	ec := experimentConfig(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting experiment")
	results, err := experiment.Run(ctx, ec)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, res := range results {
		fmt.Fprintf(out, "%s (%s): %s\n", res.Suite, res.ResultFolder, res.Summarize())
	}
	return nil
}
