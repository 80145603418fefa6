package hetzner

import (
	"context"
	"net/url"
	"strconv"

	"github.com/deployctl/deployctl/pkg/httpclient"
)

// The delete operations resolve the resource by name first so that a
// rerun of a destroy finds nothing and returns cleanly.

func (p *Provider) DeleteNetworkByName(ctx context.Context, name string) error {
	var list struct {
		Networks []hzNetwork `json:"networks"`
	}
	q := url.Values{"name": []string{name}}
	if err := p.http.Get(ctx, "/networks", q, &list); err != nil {
		return err
	}
	if len(list.Networks) == 0 {
		return nil
	}
	return swallowNotFound(p.http.Delete(ctx, "/networks/"+strconv.FormatInt(list.Networks[0].ID, 10), nil))
}

func (p *Provider) DeleteFirewallByName(ctx context.Context, name string) error {
	var list struct {
		Firewalls []hzFirewall `json:"firewalls"`
	}
	q := url.Values{"name": []string{name}}
	if err := p.http.Get(ctx, "/firewalls", q, &list); err != nil {
		return err
	}
	if len(list.Firewalls) == 0 {
		return nil
	}
	return swallowNotFound(p.http.Delete(ctx, "/firewalls/"+strconv.FormatInt(list.Firewalls[0].ID, 10), nil))
}

func (p *Provider) DeleteVolumeByName(ctx context.Context, name string) error {
	var list struct {
		Volumes []hzVolume `json:"volumes"`
	}
	q := url.Values{"name": []string{name}}
	if err := p.http.Get(ctx, "/volumes", q, &list); err != nil {
		return err
	}
	if len(list.Volumes) == 0 {
		return nil
	}
	vol := list.Volumes[0]
	if vol.Server != 0 {
		_ = p.http.Post(ctx, "/volumes/"+strconv.FormatInt(vol.ID, 10)+"/actions/detach", map[string]interface{}{}, nil)
	}
	return swallowNotFound(p.http.Delete(ctx, "/volumes/"+strconv.FormatInt(vol.ID, 10), nil))
}

func swallowNotFound(err error) error {
	if apiErr, ok := err.(*httpclient.ApiError); ok && apiErr.NotFound() {
		return nil
	}
	return err
}
