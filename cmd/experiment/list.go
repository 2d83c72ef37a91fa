package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/copyleftdev/cocogo/internal/errors"
	"github.com/copyleftdev/cocogo/internal/suite"
)

var listCmd = &cobra.Command{
	Use:   "list [suite]",
	Short: "List the problems of a suite",
	Args:  cobra.MaximumNArgs(1),
	RunE:  listProblems,
}

func init() {
	listCmd.Flags().StringVar(&suiteInstance, "suite-instance", "", "Suite instance string")
	listCmd.Flags().StringVar(&suiteOptions, "suite-options", "", "Suite filters")

	rootCmd.AddCommand(listCmd)
}

func listProblems(cmd *cobra.Command, args []string) error {
	name := cfg.Benchmark.Suite
	if len(args) == 1 {
		name = args[0]
	}

	s, err := suite.New(name, suiteInstance, suiteOptions, suite.WithLogger(logger))
	if err != nil {
		return err
	}
	defer s.Close()

	out := cmd.OutOrStdout()
	for {
		p, err := s.NextProblem(nil)
		if errors.Is(err, suite.ErrExhausted) {
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\t%s\n", p.ID(), p.Name())
		p.Close()
	}
}
