package installer

import (
	"context"
	"fmt"
	"sort"

	"github.com/deployctl/deployctl/pkg/naming"
)

// The destroy steps are each idempotent: resources already absent are
// skipped silently, so rerunning a partially failed destroy converges
// to the same empty state with the same step labels.

// CleanupTunnel removes the DNS records pointed at the deploy and the
// tunnel carrying them.
func (i *Installer) CleanupTunnel(ctx context.Context) error {
	rc := i.RC
	cf := i.Config.Cloudflare
	if rc.Cloudflare == nil || cf == nil {
		return nil
	}

	return rc.Step(ctx, "cleanup tunnel", func(ctx context.Context) error {
		zoneName := cf.Zone
		if zoneName == "" {
			zoneName = cf.Domain
		}
		zoneID, err := rc.Cloudflare.FindZone(ctx, zoneName)
		if err != nil {
			rc.OnLog("destroy", fmt.Sprintf("zone %s not found, skipping dns cleanup: %v", zoneName, err))
			return nil
		}

		if cf.Domain != "" {
			if err := rc.Cloudflare.DeleteDNSRecord(ctx, zoneID, cf.Domain, "A"); err != nil {
				rc.OnLog("destroy", fmt.Sprintf("dns record %s not removed: %v", cf.Domain, err))
			}
		}
		for hostname := range i.ingressRules() {
			if hostname == cf.Domain {
				continue
			}
			if err := rc.Cloudflare.DeleteDNSRecord(ctx, zoneID, hostname, "CNAME"); err != nil {
				rc.OnLog("destroy", fmt.Sprintf("dns record %s not removed: %v", hostname, err))
			}
		}

		tunnel, err := rc.Cloudflare.FindTunnel(ctx, naming.TunnelName(rc.Topology.Prefix))
		if err == nil && tunnel != nil {
			if err := rc.Cloudflare.DeleteTunnel(ctx, tunnel.ID); err != nil {
				rc.OnLog("destroy", fmt.Sprintf("tunnel not removed: %v", err))
			}
		}
		return nil
	})
}

// DeleteServers removes every server the prefix owns, master last so
// an interrupted destroy leaves a resumable cluster for the rerun.
func (i *Installer) DeleteServers(ctx context.Context) error {
	rc := i.RC

	return rc.Step(ctx, "delete servers", func(ctx context.Context) error {
		observed, err := ObserveServers(ctx, rc.Compute, rc.Topology.Prefix)
		if err != nil {
			return err
		}
		names := make([]string, 0, len(observed))
		for name := range observed {
			names = append(names, name)
		}
		// Master last; within a group, higher indices first.
		prefix := rc.Topology.Prefix
		sort.Slice(names, func(a, b int) bool {
			ga, ia, _ := naming.ParseServerName(prefix, names[a])
			gb, ib, _ := naming.ParseServerName(prefix, names[b])
			if (ga == "master") != (gb == "master") {
				return gb == "master"
			}
			if ga != gb {
				return ga > gb
			}
			return ia > ib
		})
		for _, name := range names {
			if err := rc.Compute.DeleteServerByName(ctx, name); err != nil {
				rc.OnLog("destroy", fmt.Sprintf("server %s not removed: %v", name, err))
			}
		}
		return nil
	})
}

// DeleteVolumes removes every volume the configuration implies.
func (i *Installer) DeleteVolumes(ctx context.Context) error {
	rc := i.RC

	return rc.Step(ctx, "delete volumes", func(ctx context.Context) error {
		for _, spec := range i.configuredVolumes() {
			name := naming.Role(rc.Topology.Prefix, spec.Name)
			if err := rc.Compute.DeleteVolumeByName(ctx, name); err != nil {
				rc.OnLog("destroy", fmt.Sprintf("volume %s not removed: %v", name, err))
			}
		}
		return nil
	})
}

func (i *Installer) DeleteNetwork(ctx context.Context) error {
	rc := i.RC
	return rc.Step(ctx, "delete network", func(ctx context.Context) error {
		if err := rc.Compute.DeleteNetworkByName(ctx, naming.NetworkName(rc.Topology.Prefix)); err != nil {
			rc.OnLog("destroy", fmt.Sprintf("network not removed: %v", err))
		}
		return nil
	})
}

func (i *Installer) DeleteFirewall(ctx context.Context) error {
	rc := i.RC
	return rc.Step(ctx, "delete firewall", func(ctx context.Context) error {
		if err := rc.Compute.DeleteFirewallByName(ctx, naming.FirewallName(rc.Topology.Prefix)); err != nil {
			rc.OnLog("destroy", fmt.Sprintf("firewall not removed: %v", err))
		}
		return nil
	})
}
