package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/deployctl/deployctl/pkg/cmd/cmd_deploy"
	"github.com/deployctl/deployctl/pkg/cmd/cmd_destroy"
	"github.com/deployctl/deployctl/pkg/cmd/cmd_sandbox"
	"github.com/deployctl/deployctl/pkg/cmd/root_cmd"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "deployctl",
		Short:         "Deploy applications to your own cloud servers",
		Long:          "deployctl provisions servers, networks and DNS from a declarative configuration,\ninstalls a lightweight container cluster and rolls your application out with zero downtime.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root := &root_cmd.RootCmd{Params: &root_cmd.Params{}}
	root.RegisterGlobalFlags(rootCmd)

	rootCmd.AddCommand(
		cmd_deploy.NewDeployCmd(root),
		cmd_destroy.NewDestroyCmd(root),
		cmd_sandbox.NewSandboxCmd(root),
	)

	// An interrupt or SIGTERM cancels ctx, which commands check between
	// steps. Signals stay captured until the command returns, so a
	// second interrupt does not kill the process.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
