package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "metrocheck: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrocheck",
		Short: "MetroCheck compliance checks and development CLI",
		Long: `MetroCheck checks product listings and label artwork for mandatory Legal Metrology
declarations. The evaluate and rules commands work offline against a rule catalog; the
stack commands drive the local docker-compose services.`,
		SilenceUsage: true,
	}
	cmd.AddCommand(
		newEvaluateCmd(),
		newRulesCmd(),
		newStackCmd(),
	)
	return cmd
}
