package scaleway

import (
	"context"
	"net/url"

	"github.com/deployctl/deployctl/pkg/httpclient"
)

func (p *Provider) DeleteNetworkByName(ctx context.Context, name string) error {
	var list struct {
		PrivateNetworks []swPrivateNetwork `json:"private_networks"`
	}
	q := url.Values{"name": []string{name}}
	if err := p.http.Get(ctx, p.instancePath("/private_networks"), q, &list); err != nil {
		return err
	}
	if len(list.PrivateNetworks) == 0 {
		return nil
	}
	return swallowNotFound(p.http.Delete(ctx, p.instancePath("/private_networks/"+list.PrivateNetworks[0].ID), nil))
}

func (p *Provider) DeleteFirewallByName(ctx context.Context, name string) error {
	var list struct {
		SecurityGroups []swSecurityGroup `json:"security_groups"`
	}
	q := url.Values{"name": []string{name}}
	if err := p.http.Get(ctx, p.instancePath("/security_groups"), q, &list); err != nil {
		return err
	}
	if len(list.SecurityGroups) == 0 {
		return nil
	}
	return swallowNotFound(p.http.Delete(ctx, p.instancePath("/security_groups/"+list.SecurityGroups[0].ID), nil))
}

func (p *Provider) DeleteVolumeByName(ctx context.Context, name string) error {
	var list struct {
		Volumes []swVolume `json:"volumes"`
	}
	q := url.Values{"name": []string{name}}
	if err := p.http.Get(ctx, p.instancePath("/volumes"), q, &list); err != nil {
		return err
	}
	if len(list.Volumes) == 0 {
		return nil
	}
	vol := list.Volumes[0]
	if vol.Server != nil {
		_ = p.http.Post(ctx, p.instancePath("/servers/"+vol.Server.ID+"/action"), map[string]interface{}{"action": "detach_volume", "volume": map[string]string{"volume_id": vol.ID}}, nil)
	}
	return swallowNotFound(p.http.Delete(ctx, p.instancePath("/volumes/"+vol.ID), nil))
}

func swallowNotFound(err error) error {
	if apiErr, ok := err.(*httpclient.ApiError); ok && apiErr.NotFound() {
		return nil
	}
	return err
}
