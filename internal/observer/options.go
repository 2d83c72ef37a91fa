package observer

import (
	"strings"

	"github.com/copyleftdev/cocogo/internal/errors"
	"github.com/copyleftdev/cocogo/internal/options"
	"github.com/copyleftdev/cocogo/internal/trigger"
)

// Options are the parsed observer settings.
type Options struct {
	ResultFolder  string
	AlgorithmName string
	AlgorithmInfo string

	Triggers trigger.Config

	PrecisionX       int
	PrecisionF       int
	PrecisionG       int
	LogDiscreteAsInt bool

	// Settings is the option string as given, written to .info headers.
	Settings string
}

var knownKeys = []string{
	"result_folder", "algorithm_name", "algorithm_info",
	"number_target_triggers", "target_precision", "log_target_precision", "lin_target_precision",
	"number_evaluation_triggers", "base_evaluation_triggers",
	"precision_x", "precision_f", "precision_g", "log_discrete_as_int",
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		ResultFolder:  "default",
		AlgorithmName: "ALG",
		Triggers:      trigger.DefaultConfig(),
		PrecisionX:    8,
		PrecisionF:    15,
		PrecisionG:    3,
	}
}

// ParseOptions reads an observer option string. Unknown keys are returned,
// not rejected.
func ParseOptions(s string) (Options, []string, error) {
	opts := DefaultOptions()
	opts.Settings = s

	set, err := options.Parse(s)
	if err != nil {
		return opts, nil, errors.Wrap(err, "parsing observer options").WithKind(errors.KindConfiguration)
	}

	opts.ResultFolder = set.String("result_folder", opts.ResultFolder)
	opts.AlgorithmName = set.String("algorithm_name", opts.AlgorithmName)
	opts.AlgorithmInfo = set.String("algorithm_info", opts.AlgorithmInfo)

	if opts.ResultFolder == "" || strings.ContainsAny(opts.ResultFolder, `/\`) {
		return opts, nil, errors.Configuration("result_folder %q must be a plain folder name", opts.ResultFolder)
	}
	if opts.AlgorithmName == "" || strings.ContainsAny(opts.AlgorithmName, " \t") {
		return opts, nil, errors.Configuration("algorithm_name %q must be a single word", opts.AlgorithmName)
	}

	cfg := &opts.Triggers
	var discrete int
	fail := func(err error) (Options, []string, error) {
		return opts, nil, errors.Wrap(err, "parsing observer options").WithKind(errors.KindConfiguration)
	}
	if cfg.NumberTargetTriggers, err = set.Int("number_target_triggers", cfg.NumberTargetTriggers); err != nil {
		return fail(err)
	}
	if cfg.TargetPrecision, err = set.Float("target_precision", cfg.TargetPrecision); err != nil {
		return fail(err)
	}
	if cfg.TargetPrecision, err = set.Float("log_target_precision", cfg.TargetPrecision); err != nil {
		return fail(err)
	}
	if cfg.LinearTargetPrecision, err = set.Float("lin_target_precision", cfg.LinearTargetPrecision); err != nil {
		return fail(err)
	}
	if cfg.NumberEvaluationTriggers, err = set.Int("number_evaluation_triggers", cfg.NumberEvaluationTriggers); err != nil {
		return fail(err)
	}
	if cfg.BaseEvaluationTriggers, err = set.Ints("base_evaluation_triggers", cfg.BaseEvaluationTriggers); err != nil {
		return fail(err)
	}
	if opts.PrecisionX, err = set.Int("precision_x", opts.PrecisionX); err != nil {
		return fail(err)
	}
	if opts.PrecisionF, err = set.Int("precision_f", opts.PrecisionF); err != nil {
		return fail(err)
	}
	if opts.PrecisionG, err = set.Int("precision_g", opts.PrecisionG); err != nil {
		return fail(err)
	}
	if discrete, err = set.Int("log_discrete_as_int", 0); err != nil {
		return fail(err)
	}
	opts.LogDiscreteAsInt = discrete != 0

	if err := cfg.Validate(); err != nil {
		return opts, nil, err
	}
	for _, p := range []int{opts.PrecisionX, opts.PrecisionF, opts.PrecisionG} {
		if p < 1 || p > 30 {
			return opts, nil, errors.Configuration("output precision %d outside [1, 30]", p)
		}
	}
	return opts, set.Unknown(knownKeys...), nil
}
