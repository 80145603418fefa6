// Package cloudflare implements DNS, tunnel and object-storage
// operations against Cloudflare, built directly on
// github.com/cloudflare/cloudflare-go — the same Pulumi provider
// dependency, used here standalone without the Pulumi resource
// graph it normally sits behind.
package cloudflare

import (
	"context"

	cf "github.com/cloudflare/cloudflare-go"
	"github.com/pkg/errors"
)

type Client struct {
	api       *cf.API
	apiToken  string
	accountID string
}

func New(apiToken, accountID string) (*Client, error) {
	api, err := cf.NewWithAPIToken(apiToken)
	if err != nil {
		return nil, errors.Wrapf(err, "cloudflare: failed to init client")
	}
	return &Client{api: api, apiToken: apiToken, accountID: accountID}, nil
}

func (c *Client) account() *cf.ResourceContainer {
	return cf.AccountIdentifier(c.accountID)
}

// FindZone resolves a zone's ID by its domain name.
func (c *Client) FindZone(ctx context.Context, zoneName string) (string, error) {
	zoneID, err := c.api.ZoneIDByName(zoneName)
	if err != nil {
		return "", errors.Wrapf(err, "cloudflare: zone %q not found", zoneName)
	}
	return zoneID, nil
}
