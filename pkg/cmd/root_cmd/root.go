// Package root_cmd carries the state shared by every deployctl
// subcommand: global flags, the loaded configuration, and the wiring
// that turns both into a run Context with console reporting attached.
package root_cmd

import (
	"os"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/deployctl/deployctl/pkg/clouds/cloudflare"
	"github.com/deployctl/deployctl/pkg/clouds/compute"
	"github.com/deployctl/deployctl/pkg/config"
	"github.com/deployctl/deployctl/pkg/naming"
	"github.com/deployctl/deployctl/pkg/observability/progress"
	"github.com/deployctl/deployctl/pkg/runcontext"
	"github.com/deployctl/deployctl/pkg/sshkey"
	"github.com/deployctl/deployctl/pkg/topology"

	// Register the compute adapters with the provider registry.
	_ "github.com/deployctl/deployctl/pkg/clouds/compute/aws"
	_ "github.com/deployctl/deployctl/pkg/clouds/compute/hetzner"
	_ "github.com/deployctl/deployctl/pkg/clouds/compute/scaleway"
)

// Params are the global flags every subcommand shares.
type Params struct {
	ConfigPath string
	NoColor    bool
	Verbose    bool
}

// RegisterGlobalFlags attaches the shared flags to the root command.
func (p *Params) RegisterGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&p.ConfigPath, "config", "c", "./deploy.yaml", "Path to the deploy configuration")
	cmd.PersistentFlags().BoolVar(&p.NoColor, "no-color", false, "Disable colored output")
	cmd.PersistentFlags().BoolVarP(&p.Verbose, "verbose", "v", false, "Verbose output")
}

// RootCmd is the initialized state subcommands run against.
type RootCmd struct {
	*Params

	Config *config.Configuration
	Keys   *sshkey.KeyPair
}

// Init loads and validates the configuration and resolves the SSH
// identity. It runs before any side effect, so a broken config fails
// here with a plain message and no cloud calls.
func (c *RootCmd) Init() error {
	if c.NoColor {
		color.NoColor = true
	}

	cfg, err := config.Load(config.FSReader, c.ConfigPath)
	if err != nil {
		return err
	}
	c.Config = cfg

	keys, err := sshkey.LoadOrGenerate(cfg.Compute.SSHKeyPath)
	if err != nil {
		return err
	}
	c.Keys = keys
	return nil
}

// NewRunContext builds the Context a command runs in: provider and
// cloudflare clients from the configuration, a topology scoped by
// prefix (and sandbox slug), and console reporting callbacks.
func (c *RootCmd) NewRunContext(slug string) (*runcontext.Context, error) {
	prefix, err := naming.Prefix(c.Config, slug)
	if err != nil {
		return nil, err
	}

	provider, err := compute.New(c.Config.Compute.Provider, compute.ProviderConfig{
		APIToken: providerToken(c.Config.Compute.Provider),
		Region:   c.Config.Compute.Region,
		Location: c.Config.Compute.Location,
	})
	if err != nil {
		return nil, err
	}

	var cfClient *cloudflare.Client
	if cf := c.Config.Cloudflare; cf != nil {
		cfClient, err = cloudflare.New(cf.APIToken, cf.AccountID)
		if err != nil {
			return nil, err
		}
	}

	reporter := progress.NewConsoleReporter(os.Stdout)
	return runcontext.New(runcontext.Options{
		Topology:          topology.New(prefix),
		Compute:           provider,
		Cloudflare:        cfClient,
		OnStep:            reporter.OnStep,
		OnStateChange:     reporter.OnStateChange,
		OnRolloutProgress: reporter.OnRolloutProgress,
		OnLog:             reporter.OnLog,
	}), nil
}

// providerToken resolves the API token env var each provider's users
// conventionally set; AWS resolves credentials through its own chain.
func providerToken(provider string) string {
	switch provider {
	case "hetzner":
		return os.Getenv("HETZNER_API_TOKEN")
	case "scaleway":
		return os.Getenv("SCALEWAY_API_TOKEN")
	}
	return ""
}

// RequireSandbox guards the sandbox subcommands against production
// configurations and validates the slug shape up front.
func (c *RootCmd) RequireSandbox(slug string) error {
	if c.Config.Target != config.TargetSandbox {
		return errors.New("this command requires target: sandbox in the configuration")
	}
	return naming.ValidateSlug(slug)
}
