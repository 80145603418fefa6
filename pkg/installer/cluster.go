package installer

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/deployctl/deployctl/pkg/naming"
	"github.com/deployctl/deployctl/pkg/planner"
)

// The install script is fetched through a chain of mirrors so a deploy
// near a region that blocks the primary host still converges; each
// alternative sets the mirror env its host expects.
const (
	installerPrimary = "curl -sfL https://get.k3s.io | sh -s -"
	installerMirror  = "curl -sfL https://rancher-mirror.rancher.cn/k3s/k3s-install.sh | INSTALL_K3S_MIRROR=cn sh -s -"

	nodeTokenPath  = "/var/lib/rancher/k3s/server/node-token"
	kubectlBin     = "sudo k3s kubectl"
	registriesYAML = `mirrors:
  "localhost:` + registryNodePort + `":
    endpoint:
      - "http://localhost:` + registryNodePort + `"
`
)

func installServerCommand(extraArgs string) string {
	return fmt.Sprintf("%s %s || %s %s", installerPrimary, extraArgs, installerMirror, extraArgs)
}

// SetupCluster installs the cluster binary on the master, labels every
// node with its server group, points containerd at the in-cluster
// registry, and joins the worker nodes using the master's token.
func (i *Installer) SetupCluster(ctx context.Context) error {
	rc := i.RC

	return rc.Step(ctx, "setup cluster", func(ctx context.Context) error {
		master, err := i.master()
		if err != nil {
			return err
		}

		if err := i.configureRegistries(master); err != nil {
			return err
		}

		serverArgs := "server --write-kubeconfig-mode 640"
		if _, err := i.run(master, "cluster", installServerCommand(serverArgs)); err != nil {
			return errors.Wrap(err, "installing cluster binary on master")
		}

		token := strings.TrimSpace(string(master.ReadFile(nodeTokenPath)))
		if token == "" {
			res, err := i.run(master, "cluster", "sudo cat "+nodeTokenPath)
			if err != nil {
				return errors.Wrap(err, "reading cluster join token")
			}
			token = strings.TrimSpace(res.Output)
		}
		if token == "" {
			return errors.New("cluster install produced no join token")
		}

		if err := i.joinWorkers(token); err != nil {
			return err
		}

		return i.labelNodes(master)
	})
}

// joinWorkers installs the agent on every non-master node, pointed at
// the master's private address when the network gave it one.
func (i *Installer) joinWorkers(token string) error {
	masterAddr := i.RC.Topology.MasterIP
	masterKey := naming.ServerName(i.RC.Topology.Prefix, "master", 1)
	if master, ok := i.RC.Topology.Servers[masterKey]; ok && master.PrivateIP != "" {
		masterAddr = master.PrivateIP
	}

	for _, key := range i.sortedServerKeys() {
		server := i.RC.Topology.Servers[key]
		if server.Group == "master" {
			continue
		}
		ssh, err := i.sshFor(server)
		if err != nil {
			return err
		}
		if err := i.configureRegistries(ssh); err != nil {
			return err
		}
		join := fmt.Sprintf("K3S_URL=https://%s:%s K3S_TOKEN=%s", masterAddr, clusterAPIPort, token)
		joinCmd := fmt.Sprintf("curl -sfL https://get.k3s.io | %s sh -s - agent || curl -sfL https://rancher-mirror.rancher.cn/k3s/k3s-install.sh | INSTALL_K3S_MIRROR=cn %s sh -s - agent", join, join)
		if _, err := i.run(ssh, "cluster", joinCmd); err != nil {
			return errors.Wrapf(err, "joining worker %q", key)
		}
	}
	return nil
}

// labelNodes stamps each node with its server group so manifests can
// pin workloads with a plain node selector.
func (i *Installer) labelNodes(master Executor) error {
	for _, key := range i.sortedServerKeys() {
		server := i.RC.Topology.Servers[key]
		cmd := fmt.Sprintf("%s label node %s server-group=%s --overwrite", kubectlBin, key, server.Group)
		if _, err := i.run(master, "cluster", cmd); err != nil {
			return errors.Wrapf(err, "labeling node %q", key)
		}
	}
	return nil
}

// configureRegistries writes the containerd mirror config that lets
// nodes pull from the in-cluster registry over plain HTTP on the
// node-local port.
func (i *Installer) configureRegistries(ssh Executor) error {
	cmd := fmt.Sprintf("sudo mkdir -p /etc/rancher/k3s && printf '%%s' %s | sudo tee /etc/rancher/k3s/registries.yaml > /dev/null", shellQuote(registriesYAML))
	if _, err := i.run(ssh, "cluster", cmd); err != nil {
		return errors.Wrap(err, "writing registries config")
	}
	return nil
}

// sortedServerKeys returns the topology's server keys in the desired
// group ordering the planner established, master first.
func (i *Installer) sortedServerKeys() []string {
	groups := planner.Desired(i.Config)
	keys := make([]string, 0, len(i.RC.Topology.Servers))
	for _, g := range groups {
		for idx := 1; idx <= g.Count; idx++ {
			key := naming.ServerName(i.RC.Topology.Prefix, g.Group, idx)
			if _, ok := i.RC.Topology.Servers[key]; ok {
				keys = append(keys, key)
			}
		}
	}
	return keys
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
