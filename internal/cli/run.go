package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/weftvm/weft/internal/bookio"
	"github.com/weftvm/weft/internal/engine"
	"github.com/weftvm/weft/internal/runtime"
	"github.com/weftvm/weft/internal/sched"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	MaxSteps  uint64
	Strategy  string
	ProfileDB string
	CacheCap  int
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <book-path> <entry-name>",
		Short: "Evaluate a book entry to normal form",
		Long: `Evaluate a definition from a book file to normal form.

The book is loaded and validated, the entry definition is instantiated,
and reduction runs on the best available backend with CPU fallback.
The printed normal form goes to stdout.

Example:
  weft run ./examples/arith.book.yaml main
  weft run ./prog.book.yaml main --strategy all-cpu --max-steps 1000000`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().Uint64Var(&opts.MaxSteps, "max-steps", 1<<24, "rewrite budget (0 = unbounded)")
	cmd.Flags().StringVar(&opts.Strategy, "strategy", "adaptive",
		"partition strategy (adaptive|all-cpu|all-gpu|round-robin|threshold:<n>)")
	cmd.Flags().StringVar(&opts.ProfileDB, "profile-db", "", "path to device profile database")
	cmd.Flags().IntVar(&opts.CacheCap, "cache-cap", 0, "kernel cache capacity (0 = default)")

	return cmd
}

// runResult is the JSON payload of a successful run.
type runResult struct {
	Session  string `json:"session"`
	State    string `json:"state"`
	Output   string `json:"output,omitempty"`
	Rewrites uint64 `json:"rewrites"`
	Steps    uint64 `json:"steps"`
}

func runEval(opts *RunOptions, bookPath, entry string, cmd *cobra.Command) error {
	logLevel := slog.LevelWarn
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	}))

	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	f, err := os.Open(bookPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open book", err)
	}
	book, err := bookio.Load(f)
	f.Close()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load book", err)
	}
	out.VerboseLog("book loaded: %d definitions", book.Len())

	strategy, err := parseStrategy(opts.Strategy)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid strategy", err)
	}

	rtOpts := []runtime.Option{
		runtime.WithLogger(logger),
		runtime.WithMaxSteps(opts.MaxSteps),
		runtime.WithCacheCap(opts.CacheCap),
	}
	if strategy != nil {
		rtOpts = append(rtOpts, runtime.WithStrategy(strategy))
	}
	if opts.ProfileDB != "" {
		rtOpts = append(rtOpts, runtime.WithProfileStore(opts.ProfileDB))
	}

	rt, err := runtime.New(rtOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start runtime", err)
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := rt.Eval(ctx, book, entry)
	if err != nil {
		code := string(engine.ErrCodeMalformedNet)
		var re *engine.RuntimeError
		if errors.As(err, &re) {
			code = string(re.Code)
		}
		_ = out.Error(code, err.Error(), nil)
		return WrapExitError(ExitFailure, "evaluation failed", err)
	}
	if res.State != engine.StateNormalForm {
		_ = out.Error(res.State.String(), "evaluation did not reach normal form", res.Rewrites)
		return NewExitError(ExitFailure, "evaluation did not reach normal form")
	}

	if opts.Format == "json" {
		return out.Success(runResult{
			Session:  res.Session,
			State:    res.State.String(),
			Output:   res.Output,
			Rewrites: res.Rewrites,
			Steps:    res.Steps,
		})
	}
	return out.Success(res.Output)
}

// parseStrategy maps the flag value to a strategy. Nil means keep the
// runtime's adaptive default.
func parseStrategy(s string) (sched.Strategy, error) {
	switch {
	case s == "adaptive" || s == "":
		return nil, nil
	case s == "all-cpu":
		return sched.AllCPU(), nil
	case s == "all-gpu":
		return sched.AllGPU(), nil
	case s == "round-robin":
		return sched.RoundRobin(), nil
	case strings.HasPrefix(s, "threshold:"):
		n, err := strconv.ParseUint(strings.TrimPrefix(s, "threshold:"), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("threshold %q: %w", s, err)
		}
		return sched.SizeThreshold(n), nil
	}
	return nil, fmt.Errorf("unknown strategy %q", s)
}
