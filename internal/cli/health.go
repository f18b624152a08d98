package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/millsync/internal/gateway"
)

// HealthOptions holds flags for the health command.
type HealthOptions struct {
	*RootOptions
	ProbeWrites bool
}

// NewHealthCommand creates the health command.
func NewHealthCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HealthOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Probe the order API",
		Long: `Probe the order API endpoints and report latency.

By default only the list endpoint is called. --probe-writes also creates
and updates a dummy order for orderer API_HEALTH_CHECK.

Examples:
  millsync health --config millsync.yaml
  millsync health --config millsync.yaml --probe-writes --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealth(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.ProbeWrites, "probe-writes", false, "also probe create and update with a dummy order")

	return cmd
}

func runHealth(opts *HealthOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	logs, err := opts.logger(cmd, cfg)
	if err != nil {
		return err
	}
	defer logs.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	results := newClient(cfg, logs.Logger).Health(ctx, opts.ProbeWrites)

	failed := 0
	for _, r := range results {
		if !r.OK {
			failed++
		}
	}

	if out.JSON() {
		if err := out.Success(results); err != nil {
			return err
		}
	} else {
		writeProbes(out.Writer, results)
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d probes failed", failed, len(results)))
	}
	return nil
}

func writeProbes(w io.Writer, results []gateway.ProbeResult) {
	for _, r := range results {
		latency := r.Latency.Round(time.Millisecond)
		if r.OK {
			fmt.Fprintf(w, "%-7s OK    %8s", r.Endpoint, latency)
			if r.Endpoint == "list" {
				fmt.Fprintf(w, "  %d orders", r.Orders)
			}
			fmt.Fprintln(w)
			continue
		}
		fmt.Fprintf(w, "%-7s FAIL  %8s  %s\n", r.Endpoint, latency, r.Error)
	}
}
