package cmd_deploy

import (
	"github.com/spf13/cobra"

	"github.com/deployctl/deployctl/pkg/cmd/root_cmd"
	"github.com/deployctl/deployctl/pkg/commands"
)

// NewDeployCmd provisions infrastructure and rolls the application
// out, converging on the configuration whatever state the previous
// run left behind.
func NewDeployCmd(rootCmd *root_cmd.RootCmd) *cobra.Command {
	return &cobra.Command{
		Use:   "deploy",
		Short: "Provision infrastructure and deploy the application",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rootCmd.Init(); err != nil {
				return err
			}
			rc, err := rootCmd.NewRunContext("")
			if err != nil {
				return err
			}
			return commands.NewDeploy(rootCmd.Config, rc, rootCmd.Keys).Run(cmd.Context())
		},
	}
}
