package installer

import (
	"context"

	"github.com/pkg/errors"

	"github.com/deployctl/deployctl/pkg/clouds/compute"
	"github.com/deployctl/deployctl/pkg/config"
	"github.com/deployctl/deployctl/pkg/naming"
	"github.com/deployctl/deployctl/pkg/planner"
	"github.com/deployctl/deployctl/pkg/topology"
)

// FirewallRules builds the shared inbound rule set. Production opens
// the cluster API port for worker joins and kubectl; a sandbox runs no
// cluster, so it stays closed there.
func FirewallRules(target config.Target) []compute.FirewallRule {
	anywhere := []string{"0.0.0.0/0", "::/0"}
	rules := []compute.FirewallRule{
		{Direction: "in", Protocol: "tcp", Port: "22", SourceIPs: anywhere},
		{Direction: "in", Protocol: "tcp", Port: "80", SourceIPs: anywhere},
		{Direction: "in", Protocol: "tcp", Port: "443", SourceIPs: anywhere},
	}
	if target != config.TargetSandbox {
		rules = append(rules, compute.FirewallRule{Direction: "in", Protocol: "tcp", Port: clusterAPIPort, SourceIPs: anywhere})
	}
	return rules
}

// serverLabels is the uniform label set every managed server carries;
// sandbox servers additionally mark their purpose so a cleanup sweep
// can find strays.
func (i *Installer) serverLabels() map[string]string {
	labels := map[string]string{
		"app":        i.Config.Name,
		"instance":   i.RC.Topology.Prefix,
		"managed-by": "deployctl",
	}
	if i.Config.Target == config.TargetSandbox {
		labels["purpose"] = "sandbox"
	}
	return labels
}

// ObserveServers discovers the servers a previous run left behind by
// matching names against the "<prefix>-<group>-<index>" pattern.
func ObserveServers(ctx context.Context, provider compute.Provider, prefix string) (map[string]topology.Server, error) {
	all, err := provider.ListServers(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing servers")
	}
	observed := map[string]topology.Server{}
	for _, s := range all {
		group, _, ok := naming.ParseServerName(prefix, s.Name)
		if !ok {
			continue
		}
		observed[s.Name] = topology.Server{
			ID:           s.ID,
			PublicIP:     s.PublicIPv4,
			PrivateIP:    s.PrivateIPv4,
			Group:        group,
			InstanceType: s.InstanceType,
		}
	}
	return observed, nil
}

// CreateInfrastructure reconciles the run's infrastructure: validates
// credentials, ensures the shared firewall and network, discovers what
// already exists, creates what's missing, and records what's excess
// for post-deploy removal.
func (i *Installer) CreateInfrastructure(ctx context.Context) error {
	rc := i.RC
	prefix := rc.Topology.Prefix

	return rc.Step(ctx, "create infrastructure", func(ctx context.Context) error {
		if err := rc.Compute.ValidateCredentials(ctx); err != nil {
			return err
		}

		key, err := rc.Compute.FindOrCreateSshKey(ctx, naming.Role(prefix, "deploy-key"), i.Keys.PublicLine)
		if err != nil {
			return err
		}

		firewall, err := rc.Compute.FindOrCreateFirewall(ctx, naming.FirewallName(prefix), FirewallRules(i.Config.Target))
		if err != nil {
			return err
		}
		rc.Topology.FirewallID = firewall.ID

		network, err := rc.Compute.FindOrCreateNetwork(ctx, naming.NetworkName(prefix), i.Config.Compute.Location)
		if err != nil {
			return err
		}
		rc.Topology.NetworkID = network.ID

		observed, err := ObserveServers(ctx, rc.Compute, prefix)
		if err != nil {
			return err
		}

		plan, err := planner.Reconcile(i.Config, prefix, observed)
		if err != nil {
			return err
		}

		// Observed servers that are still desired carry over as-is;
		// the planner only creates what's missing.
		for key := range plan.Desired {
			if server, ok := observed[key]; ok {
				rc.Topology.Servers[key] = server
			}
		}
		rc.Topology.ServersToRemove = plan.ToRemove

		opts := planner.CreateServerOptions{
			Image:         i.Config.Compute.Image,
			Location:      i.Config.Compute.Location,
			NetworkID:     network.ID,
			FirewallID:    firewall.ID,
			SSHKeyIDs:     []string{key.ID},
			SSHPublicKey:  i.Keys.PublicLine,
			CloudInit:     CloudInit,
			SSHPrivateKey: i.Keys.PrivatePEM,
			SSHUser:       deployUser,
			SSHPort:       sshPort,
		}
		if err := i.createServers(ctx, plan, opts); err != nil {
			return err
		}

		planner.FinalizeServers(rc.Topology, prefix)
		if rc.Topology.MasterIP == "" {
			return errors.New("reconciliation finished without a master address")
		}
		return nil
	})
}

func (i *Installer) createServers(ctx context.Context, plan *planner.Plan, opts planner.CreateServerOptions) error {
	if len(plan.ToCreate) == 0 {
		return nil
	}
	return planner.CreateNewServers(ctx, i.RC, plan, opts, i.serverLabels())
}
