// Command rumur compiles Murphi models into explicit-state model checkers.
//
// Usage:
//
//	rumur [options] <model.m>         compile a model to a C checker
//	rumur run [options] <model.m>     check a model in-process
//
// The default command emits a self-contained C program that, when compiled
// and executed, performs breadth-first exploration of the model's state
// space and reports counterexample traces for violated properties. The run
// subcommand performs the same exploration in-process, without needing a C
// compiler.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Siddhesh-Ghadi/rumur/internal/ast"
	"github.com/Siddhesh-Ghadi/rumur/internal/checker"
	"github.com/Siddhesh-Ghadi/rumur/internal/config"
	"github.com/Siddhesh-Ghadi/rumur/internal/diagnostic"
	"github.com/Siddhesh-Ghadi/rumur/internal/emitter"
	"github.com/Siddhesh-Ghadi/rumur/internal/parser"
	"github.com/Siddhesh-Ghadi/rumur/internal/validator"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// Diagnostics were already printed where they arose; cobra prints
		// flag errors itself.
		if _, ok := err.(silentError); !ok {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

// silentError signals a failure whose details were already reported.
type silentError struct{}

func (silentError) Error() string { return "compilation failed" }

// flagSet collects the raw flag values before they are resolved into a
// config.Config.
type flagSet struct {
	output            string
	threads           int
	maxErrors         uint64
	sandbox           string
	color             string
	setCapacity       uint64
	setThreshold      int
	valueType         string
	traces            string
	deadlock          string
	symmetry          string
	smt               bool
	machineReadable   bool
	counterexampleOff bool
	overflowOff       bool
}

func (f *flagSet) register(flags *pflag.FlagSet) {
	flags.StringVarP(&f.output, "output", "o", "", "write generated C to `file` (default stdout)")
	flags.IntVar(&f.threads, "threads", 0, "number of checker threads (default hardware concurrency)")
	flags.Uint64Var(&f.maxErrors, "max-errors", 1, "number of errors to tolerate before exiting")
	flags.StringVar(&f.sandbox, "sandbox", "off", "sandbox the checker: on, off or auto")
	flags.StringVar(&f.color, "color", "auto", "colorize output: on, off or auto")
	flags.Uint64Var(&f.setCapacity, "set-capacity", 8*1024*1024, "initial seen-set allocation in bytes")
	flags.IntVar(&f.setThreshold, "set-expand-threshold", 65, "occupancy percentage that triggers expansion")
	flags.StringVar(&f.valueType, "value-type", "int64", "scalar type for model values: int8, int16, int32 or int64")
	flags.StringVar(&f.traces, "trace", "", "comma-separated trace categories: handle_reads, handle_writes, queue, set")
	flags.StringVar(&f.deadlock, "deadlock-detection", "off", "deadlock detection mode: stuck, stuttering or off")
	flags.StringVar(&f.symmetry, "symmetry-reduction", "off", "symmetry reduction mode: heuristic, exhaustive or off")
	flags.BoolVar(&f.smt, "smt-simplification", false, "simplify guards through an external SMT solver")
	flags.BoolVar(&f.machineReadable, "machine-readable", false, "emit XML state components instead of human output")
	flags.BoolVar(&f.counterexampleOff, "no-counterexample-diff", false, "print full states in counterexample traces")
	flags.BoolVar(&f.overflowOff, "no-overflow-checks", false, "disable checked arithmetic in the checker")
}

func (f *flagSet) resolve() (config.Config, error) {
	cfg := config.Default()
	cfg.Threads = f.threads
	cfg.MaxErrors = f.maxErrors
	cfg.SetCapacity = f.setCapacity
	cfg.SetExpandThreshold = f.setThreshold
	cfg.ValueType = f.valueType
	cfg.DeadlockDetection = f.deadlock
	cfg.SymmetryReduction = f.symmetry
	cfg.SMTSimplification = f.smt
	cfg.MachineReadable = f.machineReadable
	cfg.CounterexampleDiff = !f.counterexampleOff
	cfg.OverflowChecks = !f.overflowOff

	var err error
	if cfg.Sandbox, err = config.ParseTristate(f.sandbox); err != nil {
		return cfg, fmt.Errorf("--sandbox: %w", err)
	}
	if cfg.Color, err = config.ParseTristate(f.color); err != nil {
		return cfg, fmt.Errorf("--color: %w", err)
	}
	if cfg.Traces, err = config.ParseTraces(f.traces); err != nil {
		return cfg, fmt.Errorf("--trace: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func newRootCmd() *cobra.Command {
	flags := &flagSet{}

	cmd := &cobra.Command{
		Use:           "rumur [options] <model.m>",
		Short:         "compile Murphi models into explicit-state model checkers",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.resolve()
			if err != nil {
				return err
			}
			model, err := frontend(args[0], cfg)
			if err != nil {
				return err
			}

			out := io.Writer(os.Stdout)
			if flags.output != "" {
				fh, err := os.Create(flags.output)
				if err != nil {
					return err
				}
				defer fh.Close()
				out = fh
			}
			return emitter.Emit(out, model, cfg)
		},
	}
	flags.register(cmd.Flags())

	cmd.AddCommand(newRunCmd())
	return cmd
}

func newRunCmd() *cobra.Command {
	flags := &flagSet{}

	cmd := &cobra.Command{
		Use:           "run [options] <model.m>",
		Short:         "check a model in-process",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.resolve()
			if err != nil {
				return err
			}
			if cfg.DeadlockDetection != "off" {
				return fmt.Errorf("deadlock detection is not supported in run mode")
			}
			if cfg.SymmetryReduction != "off" {
				return fmt.Errorf("symmetry reduction is not supported in run mode")
			}

			model, err := frontend(args[0], cfg)
			if err != nil {
				return err
			}

			ck := checker.New(model, cfg, os.Stdout, os.Stderr)
			if status := ck.Run(); status != 0 {
				os.Exit(status)
			}
			return nil
		},
	}
	flags.register(cmd.Flags())
	return cmd
}

// frontend runs parse, resolve, validate and reindex, reporting
// diagnostics to stderr.
func frontend(path string, cfg config.Config) (*ast.Model, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	diags := diagnostic.NewList(path, string(source))

	model, parseErrors := parser.New(string(source)).Parse()
	for _, e := range parseErrors {
		diags.AddErrorAt(e.Line, e.Column, e.Message)
	}
	if diags.HasErrors() {
		fmt.Fprint(os.Stderr, diags.Format())
		return nil, silentError{}
	}

	for _, e := range validator.Resolve(model) {
		diags.AddErrorAt(e.Loc.Line, e.Loc.Column, e.Msg)
	}
	if diags.HasErrors() {
		fmt.Fprint(os.Stderr, diags.Format())
		return nil, silentError{}
	}

	for _, e := range validator.Validate(model) {
		diags.AddErrorAt(e.Loc.Line, e.Loc.Column, e.Msg)
	}
	if diags.HasErrors() {
		fmt.Fprint(os.Stderr, diags.Format())
		return nil, silentError{}
	}

	if cfg.SMTSimplification {
		fmt.Fprintln(os.Stderr, "warning: SMT simplification is not available in this build; continuing without it")
	}

	// Offsets are assigned last, after any rewriting, so they always
	// reflect the final declarations.
	model.Reindex()
	return model, nil
}
