package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sambabib/depconfusion/pkg/errdefs"
)

// Version is set during build using ldflags
var Version = "dev"

// newRootCmd builds the base command and its subcommands.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "depcheck",
		Short: "Audits package.json dependencies for dependency-confusion risk",
		Long: `Dependency Checker compares every dependency declared in a package.json with the
latest version published in the npm registry. It reports up-to-date and outdated
packages and flags phantom packages: names that are not published at all and could
be claimed by anyone.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(newAnalyzeCmd())
	return rootCmd
}

// Execute runs the root command. SIGINT and SIGTERM cancel the run.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(errdefs.ExitCode(err))
	}
}
