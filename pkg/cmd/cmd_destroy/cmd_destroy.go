package cmd_destroy

import (
	"github.com/spf13/cobra"

	"github.com/deployctl/deployctl/pkg/cmd/root_cmd"
	"github.com/deployctl/deployctl/pkg/commands"
)

// NewDestroyCmd tears down everything the deploy created. Rerunning a
// partially failed destroy is safe: each step skips what is already
// gone.
func NewDestroyCmd(rootCmd *root_cmd.RootCmd) *cobra.Command {
	return &cobra.Command{
		Use:   "destroy",
		Short: "Tear down all managed infrastructure for this configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rootCmd.Init(); err != nil {
				return err
			}
			rc, err := rootCmd.NewRunContext("")
			if err != nil {
				return err
			}
			return commands.NewDestroy(rootCmd.Config, rc, rootCmd.Keys).Run(cmd.Context())
		},
	}
}
