package cloudflare

import (
	"context"

	cf "github.com/cloudflare/cloudflare-go"
	"github.com/pkg/errors"
)

// FindDNSRecord returns the first record matching name and type, or
// nil if none exists.
func (c *Client) FindDNSRecord(ctx context.Context, zoneID, name, recordType string) (*cf.DNSRecord, error) {
	rc := cf.ZoneIdentifier(zoneID)
	records, _, err := c.api.ListDNSRecords(ctx, rc, cf.ListDNSRecordsParams{Name: name, Type: recordType})
	if err != nil {
		return nil, errors.Wrapf(err, "cloudflare: list dns records %q", name)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// EnsureARecord creates or updates an A record pointing name at ip,
// proxied through Cloudflare's edge.
func (c *Client) EnsureARecord(ctx context.Context, zoneID, name, ip string, proxied bool) error {
	return c.ensureDNSRecord(ctx, zoneID, name, "A", ip, proxied)
}

// EnsureDNSRecord creates or updates a CNAME pointing name at target
// (used to point a subdomain at a tunnel's <tunnel-id>.cfargotunnel.com
// hostname).
func (c *Client) EnsureDNSRecord(ctx context.Context, zoneID, name, recordType, target string, proxied bool) error {
	return c.ensureDNSRecord(ctx, zoneID, name, recordType, target, proxied)
}

func (c *Client) ensureDNSRecord(ctx context.Context, zoneID, name, recordType, content string, proxied bool) error {
	existing, err := c.FindDNSRecord(ctx, zoneID, name, recordType)
	if err != nil {
		return err
	}
	rc := cf.ZoneIdentifier(zoneID)
	if existing == nil {
		_, err := c.api.CreateDNSRecord(ctx, rc, cf.CreateDNSRecordParams{
			Type:    recordType,
			Name:    name,
			Content: content,
			Proxied: &proxied,
			TTL:     1,
		})
		if err != nil {
			return errors.Wrapf(err, "cloudflare: create dns record %q", name)
		}
		return nil
	}
	if existing.Content == content {
		return nil
	}
	_, err = c.api.UpdateDNSRecord(ctx, rc, cf.UpdateDNSRecordParams{
		ID:      existing.ID,
		Type:    recordType,
		Name:    name,
		Content: content,
		Proxied: &proxied,
	})
	if err != nil {
		return errors.Wrapf(err, "cloudflare: update dns record %q", name)
	}
	return nil
}

// DeleteDNSRecord removes a record by name/type if present; a no-op
// when it doesn't exist.
func (c *Client) DeleteDNSRecord(ctx context.Context, zoneID, name, recordType string) error {
	existing, err := c.FindDNSRecord(ctx, zoneID, name, recordType)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}
	if err := c.api.DeleteDNSRecord(ctx, cf.ZoneIdentifier(zoneID), existing.ID); err != nil {
		return errors.Wrapf(err, "cloudflare: delete dns record %q", name)
	}
	return nil
}

// SetSSLMode sets the zone's SSL/TLS encryption mode ("off",
// "flexible", "full", "strict").
func (c *Client) SetSSLMode(ctx context.Context, zoneID, mode string) error {
	_, err := c.api.UpdateZoneSSLSettings(ctx, zoneID, mode)
	if err != nil {
		return errors.Wrapf(err, "cloudflare: set ssl mode %q on zone %s", mode, zoneID)
	}
	return nil
}
