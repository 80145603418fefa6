package installer

import (
	"context"
	"fmt"
)

// RemoveExcessServers tears down the servers the planner marked as no
// longer desired, highest index first. Draining and node deletion are
// single-attempt best effort: a node that won't drain cleanly still
// gets removed, because the replacement capacity already took its
// workloads during the rollout.
func (i *Installer) RemoveExcessServers(ctx context.Context) error {
	rc := i.RC
	if len(rc.Topology.ServersToRemove) == 0 {
		return nil
	}

	return rc.Step(ctx, "remove excess servers", func(ctx context.Context) error {
		master, err := i.master()
		if err != nil {
			return err
		}

		for _, name := range rc.Topology.ServersToRemove {
			drain := fmt.Sprintf("%s drain %s --ignore-daemonsets --delete-emptydir-data --force --timeout=60s", kubectlBin, name)
			if _, err := i.run(master, "remove", drain); err != nil {
				rc.OnLog("remove", fmt.Sprintf("drain of %s failed, continuing: %v", name, err))
			}
			if _, err := i.run(master, "remove", fmt.Sprintf("%s delete node %s --ignore-not-found", kubectlBin, name)); err != nil {
				rc.OnLog("remove", fmt.Sprintf("node delete of %s failed, continuing: %v", name, err))
			}
			if err := rc.Compute.DeleteServerByName(ctx, name); err != nil {
				rc.OnLog("remove", fmt.Sprintf("server delete of %s failed, continuing: %v", name, err))
			}
		}
		return nil
	})
}
