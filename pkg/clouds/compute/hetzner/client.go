// Package hetzner implements the compute.Provider contract against the
// Hetzner Cloud API v1. It is the
// primary/reference adapter: every operation the contract names is
// fully implemented here, and the other adapters (Scaleway, AWS) are
// judged against this one's behavior.
package hetzner

import (
	"context"
	"net/url"

	"github.com/pkg/errors"

	"github.com/deployctl/deployctl/pkg/clouds/compute"
	"github.com/deployctl/deployctl/pkg/httpclient"
)

const baseURL = "https://api.hetzner.cloud/v1"

func init() {
	compute.Register("hetzner", func(cfg compute.ProviderConfig) (compute.Provider, error) {
		if cfg.APIToken == "" {
			return nil, errors.New("hetzner: APIToken is required")
		}
		return New(cfg.APIToken), nil
	})
}

type Provider struct {
	http *httpclient.Client
}

func New(apiToken string) *Provider {
	return &Provider{http: httpclient.New(baseURL, apiToken)}
}

func (p *Provider) ProviderName() string     { return "hetzner" }
func (p *Provider) SupportsSelfHosted() bool { return false }
func (p *Provider) VMBased() bool            { return true }

func (p *Provider) ValidateCredentials(ctx context.Context) error {
	var out struct {
		Servers []struct {
			ID int64 `json:"id"`
		} `json:"servers"`
	}
	q := url.Values{"per_page": []string{"1"}}
	if err := p.http.Get(ctx, "/servers", q, &out); err != nil {
		if apiErr, ok := err.(*httpclient.ApiError); ok && apiErr.Unauthorized() {
			return errors.Wrapf(err, "hetzner credentials rejected")
		}
		return err
	}
	return nil
}
