package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/weftvm/weft/internal/backend"
)

// DescribeOptions holds flags for the describe command.
type DescribeOptions struct {
	*RootOptions
}

// NewDescribeCommand creates the describe command.
func NewDescribeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DescribeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Probe backends and report the selected device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDescribe(opts, cmd)
		},
	}
	return cmd
}

type describeResult struct {
	Backend       string `json:"backend"`
	Kind          string `json:"kind"`
	Vendor        string `json:"vendor"`
	ComputeUnits  uint32 `json:"compute_units"`
	UnifiedMemory bool   `json:"unified_memory"`
}

func runDescribe(opts *DescribeOptions, cmd *cobra.Command) error {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if opts.Verbose {
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}

	dev, err := backend.Select(logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "no backend available", err)
	}
	info := dev.Describe()

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		return out.Success(describeResult{
			Backend:       dev.Name(),
			Kind:          dev.Kind().String(),
			Vendor:        info.Vendor.String(),
			ComputeUnits:  info.ComputeUnits,
			UnifiedMemory: info.UnifiedMemory,
		})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "backend:        %s\n", dev.Name())
	fmt.Fprintf(cmd.OutOrStdout(), "kind:           %s\n", dev.Kind())
	fmt.Fprintf(cmd.OutOrStdout(), "vendor:         %s\n", info.Vendor)
	fmt.Fprintf(cmd.OutOrStdout(), "compute units:  %d\n", info.ComputeUnits)
	fmt.Fprintf(cmd.OutOrStdout(), "unified memory: %t\n", info.UnifiedMemory)
	return nil
}
