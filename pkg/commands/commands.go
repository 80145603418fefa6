// Package commands exposes the four operations the CLI runs: Deploy,
// Destroy, DeploySandbox and DestroySandbox. Each is a state machine
// over an ordered list of installer steps: enter the start state, run
// every step, land in the success state — or in failed, re-raising the
// step's error. An external abort is honored between steps only.
package commands

import (
	"context"

	"github.com/deployctl/deployctl/pkg/config"
	"github.com/deployctl/deployctl/pkg/installer"
	"github.com/deployctl/deployctl/pkg/runcontext"
	"github.com/deployctl/deployctl/pkg/sshkey"
	"github.com/deployctl/deployctl/pkg/topology"
)

// step is one unit of a command's pipeline. Steps fire their own
// on_step events; the command only manages state transitions.
type step func(ctx context.Context) error

// Command runs an ordered step pipeline under a start/success state
// pair. All four public commands are instances of this one machine.
type Command struct {
	rc      *runcontext.Context
	start   topology.State
	success topology.State
	steps   []step
}

// Run drives the state machine: any step error flips the state to
// failed and propagates; completing every step lands in success.
func (c *Command) Run(ctx context.Context) error {
	c.rc.SetState(c.start)
	for _, s := range c.steps {
		if err := installer.Abortable(ctx); err != nil {
			c.rc.SetState(topology.StateFailed)
			return err
		}
		if err := s(ctx); err != nil {
			c.rc.SetState(topology.StateFailed)
			return err
		}
	}
	c.rc.SetState(c.success)
	return nil
}

// NewDeploy composes the full production pipeline. Optional stages
// drop out when the configuration doesn't need them: volumes without
// persistent workloads, tunnel and DNS without cloudflare, image
// build without an app.
func NewDeploy(cfg *config.Configuration, rc *runcontext.Context, keys *sshkey.KeyPair) *Command {
	inst := installer.New(cfg, rc, keys)

	steps := []step{inst.CreateInfrastructure, inst.SetupCluster}
	if needsVolumes(cfg) {
		steps = append(steps, inst.ProvisionVolumes)
	}
	if cfg.Cloudflare != nil {
		steps = append(steps, inst.SetupTunnel)
	} else if cfg.App != nil {
		steps = append(steps, inst.SetupLoadBalancer)
	}
	if cfg.App != nil {
		steps = append(steps, inst.SetupRegistry, inst.BuildImage, inst.CleanupImages)
	}
	steps = append(steps, inst.DeployManifests, inst.RemoveExcessServers)

	return &Command{rc: rc, start: topology.StateProvisioning, success: topology.StateDeployed, steps: steps}
}

// NewDestroy composes the teardown pipeline. Every step tolerates
// already-absent resources, so rerunning a destroy emits the same
// step labels and converges on the same empty state.
func NewDestroy(cfg *config.Configuration, rc *runcontext.Context, keys *sshkey.KeyPair) *Command {
	inst := installer.New(cfg, rc, keys)
	return &Command{
		rc:      rc,
		start:   topology.StateDestroying,
		success: topology.StateDestroyed,
		steps: []step{
			inst.CleanupTunnel,
			inst.DeleteServers,
			inst.DeleteVolumes,
			inst.DeleteNetwork,
			inst.DeleteFirewall,
		},
	}
}

// NewDeploySandbox stands up a single docker-compose host instead of
// a cluster; its success state is running, not deployed.
func NewDeploySandbox(cfg *config.Configuration, rc *runcontext.Context, keys *sshkey.KeyPair) *Command {
	inst := installer.New(cfg, rc, keys)
	return &Command{
		rc:      rc,
		start:   topology.StateProvisioning,
		success: topology.StateRunning,
		steps:   []step{inst.CreateInfrastructure, inst.SetupSandbox},
	}
}

// NewDestroySandbox tears the sandbox host and its shared resources
// down.
func NewDestroySandbox(cfg *config.Configuration, rc *runcontext.Context, keys *sshkey.KeyPair) *Command {
	inst := installer.New(cfg, rc, keys)
	return &Command{
		rc:      rc,
		start:   topology.StateDestroying,
		success: topology.StateDestroyed,
		steps: []step{
			inst.TeardownSandbox,
			inst.DeleteNetwork,
			inst.DeleteFirewall,
		},
	}
}

// needsVolumes reports whether any workload persists data: a database
// or a service with a mount path.
func needsVolumes(cfg *config.Configuration) bool {
	if len(cfg.Databases) > 0 {
		return true
	}
	for _, svc := range cfg.Services {
		if svc.MountPath != "" {
			return true
		}
	}
	return false
}
