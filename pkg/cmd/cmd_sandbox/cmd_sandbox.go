package cmd_sandbox

import (
	"github.com/spf13/cobra"

	"github.com/deployctl/deployctl/pkg/cmd/root_cmd"
	"github.com/deployctl/deployctl/pkg/commands"
	"github.com/deployctl/deployctl/pkg/runcontext"
)

// NewSandboxCmd groups the ephemeral-environment commands: "sandbox
// up" stands a slug-scoped docker-compose host up, "sandbox down"
// removes it.
func NewSandboxCmd(rootCmd *root_cmd.RootCmd) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Manage ephemeral sandbox environments",
	}

	var slug string
	cmd.PersistentFlags().StringVar(&slug, "slug", "", "Six-char lowercase hex sandbox identifier (required)")

	up := &cobra.Command{
		Use:   "up",
		Short: "Create or update a sandbox environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := initSandbox(rootCmd, slug)
			if err != nil {
				return err
			}
			return commands.NewDeploySandbox(rootCmd.Config, rc, rootCmd.Keys).Run(cmd.Context())
		},
	}

	down := &cobra.Command{
		Use:   "down",
		Short: "Destroy a sandbox environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := initSandbox(rootCmd, slug)
			if err != nil {
				return err
			}
			return commands.NewDestroySandbox(rootCmd.Config, rc, rootCmd.Keys).Run(cmd.Context())
		},
	}

	cmd.AddCommand(up, down)
	return cmd
}

func initSandbox(rootCmd *root_cmd.RootCmd, slug string) (*runcontext.Context, error) {
	if err := rootCmd.Init(); err != nil {
		return nil, err
	}
	if err := rootCmd.RequireSandbox(slug); err != nil {
		return nil, err
	}
	return rootCmd.NewRunContext(slug)
}
