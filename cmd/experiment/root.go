package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/copyleftdev/cocogo/internal/config"
	"github.com/copyleftdev/cocogo/internal/logging"
)

var (
	logLevel  string
	logFormat string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "experiment",
	Short: "Benchmark black-box solvers on cocogo suites",
	Long: `experiment runs a solver over every problem of one or more suites and
records the anytime performance through an observer.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(); err != nil {
			return err
		}
		if logLevel == "" {
			logLevel = cfg.Logging.Level
		}
		if logFormat == "" {
			logFormat = cfg.Logging.Format
		}

		base, err := logging.NewLogger(&logging.Config{
			Level:  logLevel,
			Format: logFormat,
			Output: cfg.Logging.Output,
		})
		if err != nil {
			return err
		}
		logger = logging.NewZapLogger(base.WithField("service", "cocogo-experiment"))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format (json, text)")
}
