package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func Main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cutlist",
		Short:         "Remove time ranges from media files and stream cut previews",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Visible flags
	root.PersistentFlags().String("config", "", "Path to cutlist.yaml (default $CUTLIST_CONFIG or ./cutlist.yaml)")
	root.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")

	// Hidden tuning flag (internal)
	root.PersistentFlags().String("log-format", "", "Log format: json or text")
	_ = root.PersistentFlags().MarkHidden("log-format")

	root.AddCommand(
		newProbeCmd(),
		newPlanCmd(),
		newExportCmd(),
		newPreviewCmd(),
		newComposeCmd(),
		newProxyCmd(),
		newServeCmd(),
	)
	return root
}
