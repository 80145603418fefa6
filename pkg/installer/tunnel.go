package installer

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/deployctl/deployctl/pkg/naming"
	"github.com/deployctl/deployctl/pkg/topology"
)

// ingressRules maps every routed workload's hostname to the cluster
// service cloudflared forwards it to. The catch-all 404 terminator is
// appended by the tunnel client itself.
func (i *Installer) ingressRules() map[string]string {
	rules := map[string]string{}
	p := i.manifestParams()
	prefix := i.RC.Topology.Prefix

	for name, svc := range i.Config.Services {
		if svc.Subdomain == "" || svc.Port == 0 {
			continue
		}
		rules[p.FQDN(svc.Subdomain)] = fmt.Sprintf("http://%s-%s:%d", prefix, name, svc.Port)
	}
	if i.Config.App != nil {
		for name, proc := range i.Config.App.Processes {
			if proc.Subdomain == "" || proc.Port == 0 {
				continue
			}
			rules[p.FQDN(proc.Subdomain)] = fmt.Sprintf("http://%s-%s:%d", prefix, name, proc.Port)
		}
	}
	return rules
}

// SetupTunnel ensures the run's named tunnel exists with the current
// ingress routing, publishes DNS for every routed hostname, and keeps
// the connector token for the manifest step.
func (i *Installer) SetupTunnel(ctx context.Context) error {
	rc := i.RC
	cf := i.Config.Cloudflare
	if rc.Cloudflare == nil || cf == nil {
		return nil
	}

	return rc.Step(ctx, "setup tunnel", func(ctx context.Context) error {
		tunnelID, token, err := rc.Cloudflare.SetupTunnel(ctx, naming.TunnelName(rc.Topology.Prefix), i.ingressRules())
		if err != nil {
			return err
		}
		rc.Topology.TunnelID = tunnelID
		i.tunnelToken = token

		zoneName := cf.Zone
		if zoneName == "" {
			zoneName = cf.Domain
		}
		zoneID, err := rc.Cloudflare.FindZone(ctx, zoneName)
		if err != nil {
			return err
		}

		// The apex rides a proxied A record at the master; every
		// other hostname is a CNAME into the tunnel.
		if cf.Domain != "" {
			if err := rc.Cloudflare.EnsureARecord(ctx, zoneID, cf.Domain, rc.Topology.MasterIP, true); err != nil {
				return err
			}
			rc.Topology.DNSRecords = append(rc.Topology.DNSRecords, topology.DNSRecord{Name: cf.Domain, Type: "A"})
		}

		tunnelTarget := tunnelID + ".cfargotunnel.com"
		for hostname := range i.ingressRules() {
			if hostname == cf.Domain {
				continue
			}
			if err := rc.Cloudflare.EnsureDNSRecord(ctx, zoneID, hostname, "CNAME", tunnelTarget, true); err != nil {
				return err
			}
			rc.Topology.DNSRecords = append(rc.Topology.DNSRecords, topology.DNSRecord{Name: hostname, Type: "CNAME"})
		}

		if err := rc.Cloudflare.SetSSLMode(ctx, zoneID, "full"); err != nil {
			return errors.Wrap(err, "setting zone ssl mode")
		}
		return nil
	})
}
