package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/weftvm/weft/internal/bookio"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check <book-path>",
		Short: "Validate a book file without evaluating it",
		Long: `Parse and validate a book file against the schema, resolving every
reference, without starting a runtime.

Example:
  weft check ./examples/arith.book.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, args[0], cmd)
		},
	}
	return cmd
}

type checkResult struct {
	Definitions int      `json:"definitions"`
	Names       []string `json:"names"`
}

func runCheck(opts *CheckOptions, bookPath string, cmd *cobra.Command) error {
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
	defer f.Close()

	book, err := bookio.Load(f)
	if err != nil {
		_ = out.Error("INVALID_BOOK", err.Error(), nil)
		return WrapExitError(ExitFailure, "book is invalid", err)
	}

	if opts.Format == "json" {
		return out.Success(checkResult{Definitions: book.Len(), Names: book.Names()})
	}
	out.VerboseLog("definitions: %v", book.Names())
	return out.Success("ok")
}
