package installer

import (
	"context"
	"sort"

	"github.com/deployctl/deployctl/pkg/clouds/compute"
	"github.com/deployctl/deployctl/pkg/naming"
)

// SetupLoadBalancer fronts the app with a provider load balancer when
// no tunnel carries ingress: one TCP service per exposed process port,
// every server a target. Deploys with cloudflare skip this entirely —
// the tunnel is the ingress path there.
func (i *Installer) SetupLoadBalancer(ctx context.Context) error {
	rc := i.RC
	ports := i.exposedPorts()
	if len(ports) == 0 {
		return nil
	}

	return rc.Step(ctx, "setup load balancer", func(ctx context.Context) error {
		lb, err := rc.Compute.FindOrCreateLoadBalancer(ctx, compute.CreateLoadBalancerInput{
			Name:     naming.Role(rc.Topology.Prefix, "lb"),
			Location: i.Config.Compute.Location,
			Labels:   i.serverLabels(),
		})
		if err != nil {
			return err
		}
		rc.Topology.LoadBalancerID = lb.ID

		if rc.Topology.NetworkID != "" {
			if err := rc.Compute.AttachLoadBalancerToNetwork(ctx, lb.ID, rc.Topology.NetworkID); err != nil {
				return err
			}
		}
		for _, key := range i.sortedServerKeys() {
			if err := rc.Compute.AddLoadBalancerTarget(ctx, lb.ID, rc.Topology.Servers[key].ID); err != nil {
				return err
			}
		}
		for _, port := range ports {
			if err := rc.Compute.AddLoadBalancerService(ctx, lb.ID, 80, port); err != nil {
				return err
			}
		}
		return nil
	})
}

// exposedPorts lists the app process ports reachable from outside, in
// declaration-independent sorted order.
func (i *Installer) exposedPorts() []int {
	if i.Config.App == nil {
		return nil
	}
	seen := map[int]bool{}
	var ports []int
	for _, proc := range i.Config.App.Processes {
		if proc.Port != 0 && !seen[proc.Port] {
			seen[proc.Port] = true
			ports = append(ports, proc.Port)
		}
	}
	sort.Ints(ports)
	return ports
}
