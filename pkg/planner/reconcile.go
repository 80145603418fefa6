package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/deployctl/deployctl/pkg/clouds/compute"
	"github.com/deployctl/deployctl/pkg/naming"
	"github.com/deployctl/deployctl/pkg/runcontext"
	"github.com/deployctl/deployctl/pkg/sshclient"
	"github.com/deployctl/deployctl/pkg/topology"
	"github.com/deployctl/deployctl/pkg/waiter"
)

const (
	newServerSSHAttempts = 36
	newServerSSHInterval = 5 * time.Second
)

// CreateServerOptions carries everything creating a new server needs
// beyond the plan itself: image, location, the shared network and
// firewall it joins, and the deploy-user cloud-init template.
type CreateServerOptions struct {
	Image         string
	Location      string
	NetworkID     string
	FirewallID    string
	SSHKeyIDs     []string
	SSHPublicKey  string
	CloudInit     func(sshPublicKey string) string
	SSHPrivateKey []byte
	SSHUser       string
	SSHPort       int
}

// CreateNewServers runs steps 4-6 of the reconciliation algorithm for
// every key in plan.ToCreate: find-or-create the server, record it in
// the topology, and wait for SSH to come up before returning. A new
// server that never becomes reachable over SSH is a fatal error —
// there is no partial-success path for a deploy that can't configure
// the host it just created.
func CreateNewServers(ctx context.Context, rc *runcontext.Context, plan *Plan, opts CreateServerOptions, labels map[string]string) error {
	for _, key := range plan.ToCreate {
		group := plan.Desired[key]

		userData := ""
		if opts.CloudInit != nil {
			userData = opts.CloudInit(opts.SSHPublicKey)
		}

		server, err := rc.Compute.FindOrCreateServer(ctx, compute.CreateServerInput{
			Name:         key,
			InstanceType: group.InstanceType,
			Location:     opts.Location,
			Image:        opts.Image,
			UserData:     userData,
			Labels:       labels,
			FirewallIDs:  []string{opts.FirewallID},
			NetworkIDs:   []string{opts.NetworkID},
			SshKeyIDs:    opts.SSHKeyIDs,
		})
		if err != nil {
			return errors.Wrapf(err, "creating server %q", key)
		}

		rc.Topology.Servers[key] = topology.Server{
			ID:           server.ID,
			PublicIP:     server.PublicIPv4,
			PrivateIP:    server.PrivateIPv4,
			Group:        group.Group,
			InstanceType: group.InstanceType,
		}
		rc.Topology.NewServers = append(rc.Topology.NewServers, key)
	}

	for _, key := range rc.Topology.NewServers {
		server := rc.Topology.Servers[key]
		ssh, err := sshclient.New(server.PublicIP, opts.SSHPort, opts.SSHUser, opts.SSHPrivateKey)
		if err != nil {
			return errors.Wrapf(err, "building ssh client for %q", key)
		}
		if err := waiter.Poll(newServerSSHAttempts, newServerSSHInterval, fmt.Sprintf("waiting for %s to accept ssh", key), func() (bool, error) {
			return ssh.Available(), nil
		}); err != nil {
			return errors.Wrapf(err, "server %q never became reachable over ssh", key)
		}
	}

	return nil
}

// FinalizeServers copies the master's address onto the topology-level
// ID/IP fields the rest of the run reads. Topology.Servers is a map,
// so it does not keep the desired group ordering.
func FinalizeServers(t *topology.Topology, prefix string) {
	masterKey := naming.ServerName(prefix, masterGroup, 1)
	if master, ok := t.Servers[masterKey]; ok {
		t.MasterID = master.ID
		t.MasterIP = master.PublicIP
	}
}
