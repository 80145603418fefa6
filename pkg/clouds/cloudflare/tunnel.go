package cloudflare

import (
	"context"
	"crypto/rand"
	"encoding/base64"

	cf "github.com/cloudflare/cloudflare-go"
	"github.com/pkg/errors"
)

// FindTunnel returns the live tunnel with the given name, or nil when
// none exists.
func (c *Client) FindTunnel(ctx context.Context, name string) (*cf.Tunnel, error) {
	tunnels, _, err := c.api.Tunnels(ctx, c.account(), cf.TunnelListParams{Name: name})
	if err != nil {
		return nil, errors.Wrapf(err, "cloudflare: list tunnels")
	}
	for _, t := range tunnels {
		if t.Name == name && t.DeletedAt == nil {
			return &t, nil
		}
	}
	return nil, nil
}

// FindOrCreateTunnel returns an existing named tunnel or creates one
// with a freshly generated secret, used to carry cluster ingress
// without a public load balancer.
func (c *Client) FindOrCreateTunnel(ctx context.Context, name string) (*cf.Tunnel, error) {
	if existing, err := c.FindTunnel(ctx, name); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	// The API wants the 32-byte secret as a base64 string; raw bytes
	// don't survive JSON marshaling.
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, errors.Wrapf(err, "cloudflare: generate tunnel secret")
	}

	tunnel, err := c.api.CreateTunnel(ctx, c.account(), cf.TunnelCreateParams{Name: name, Secret: base64.StdEncoding.EncodeToString(secret)})
	if err != nil {
		return nil, errors.Wrapf(err, "cloudflare: create tunnel %q", name)
	}
	return &tunnel, nil
}

// ConfigureTunnelIngress maps hostname -> service (e.g.
// "http://localhost:8080") rules, terminated by a catch-all 404
// response, matching Cloudflare's ingress rule ordering rules.
func (c *Client) ConfigureTunnelIngress(ctx context.Context, tunnelID string, rules map[string]string) error {
	ingress := make([]cf.UnvalidatedIngressRule, 0, len(rules)+1)
	for hostname, service := range rules {
		ingress = append(ingress, cf.UnvalidatedIngressRule{Hostname: hostname, Service: service})
	}
	ingress = append(ingress, cf.UnvalidatedIngressRule{Service: "http_status:404"})

	_, err := c.api.UpdateTunnelConfiguration(ctx, c.account(), cf.TunnelConfigurationParams{
		TunnelID: tunnelID,
		Config:   cf.TunnelConfiguration{Ingress: ingress},
	})
	if err != nil {
		return errors.Wrapf(err, "cloudflare: configure ingress for tunnel %s", tunnelID)
	}
	return nil
}

// GetTunnelToken returns the base64 connector token cloudflared needs
// to establish the tunnel from inside the cluster.
func (c *Client) GetTunnelToken(ctx context.Context, tunnelID string) (string, error) {
	token, err := c.api.TunnelToken(ctx, c.account(), tunnelID)
	if err != nil {
		return "", errors.Wrapf(err, "cloudflare: get token for tunnel %s", tunnelID)
	}
	return token, nil
}

// DeleteTunnel drops any live connections first, then the tunnel
// itself; Cloudflare rejects deleting a tunnel with connectors still
// attached.
func (c *Client) DeleteTunnel(ctx context.Context, tunnelID string) error {
	_ = c.api.CleanupTunnelConnections(ctx, c.account(), tunnelID)
	if err := c.api.DeleteTunnel(ctx, c.account(), tunnelID); err != nil {
		return errors.Wrapf(err, "cloudflare: delete tunnel %s", tunnelID)
	}
	return nil
}

// SetupTunnel composes FindOrCreateTunnel, ConfigureTunnelIngress and
// GetTunnelToken into the single call the installer's tunnel step
// needs.
func (c *Client) SetupTunnel(ctx context.Context, name string, ingress map[string]string) (tunnelID, token string, err error) {
	tunnel, err := c.FindOrCreateTunnel(ctx, name)
	if err != nil {
		return "", "", err
	}
	if err := c.ConfigureTunnelIngress(ctx, tunnel.ID, ingress); err != nil {
		return "", "", err
	}
	token, err = c.GetTunnelToken(ctx, tunnel.ID)
	if err != nil {
		return "", "", err
	}
	return tunnel.ID, token, nil
}
