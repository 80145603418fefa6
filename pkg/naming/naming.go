// Package naming computes the canonical resource-name prefix and the
// per-role names derived from it, and validates the ephemeral slug a
// sandbox run is keyed on.
package naming

import (
	"fmt"
	"regexp"

	"github.com/pkg/errors"

	"github.com/deployctl/deployctl/pkg/config"
)

var slugPattern = regexp.MustCompile(`^[a-f0-9]{6}$`)

// ValidateSlug rejects anything that isn't exactly six lowercase hex
// characters.
func ValidateSlug(slug string) error {
	if !slugPattern.MatchString(slug) {
		return errors.Errorf("sandbox slug %q must match /[a-f0-9]{6}/", slug)
	}
	return nil
}

// Prefix computes the deterministic resource-name prefix: the
// configuration name, with a sandbox slug spliced in for sandbox
// targets.
func Prefix(cfg *config.Configuration, slug string) (string, error) {
	if cfg.Target == config.TargetSandbox {
		if err := ValidateSlug(slug); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s-sandbox-%s", cfg.Name, slug), nil
	}
	return cfg.Name, nil
}

// ServerName builds a "<prefix>-<group>-<index>" server name, index
// being 1-based.
func ServerName(prefix, group string, index int) string {
	return fmt.Sprintf("%s-%s-%d", prefix, group, index)
}

var serverNamePattern = regexp.MustCompile(`^(.+)-([^-]+)-(\d+)$`)

// ParseServerName recovers the group and 1-based index from a name
// produced by ServerName, for matching observed infrastructure back
// onto configuration groups.
func ParseServerName(prefix, name string) (group string, index int, ok bool) {
	if len(name) <= len(prefix)+1 || name[:len(prefix)+1] != prefix+"-" {
		return "", 0, false
	}
	rest := name[len(prefix)+1:]
	m := regexp.MustCompile(`^([^-]+)-(\d+)$`).FindStringSubmatch(rest)
	if m == nil {
		return "", 0, false
	}
	var idx int
	if _, err := fmt.Sscanf(m[2], "%d", &idx); err != nil {
		return "", 0, false
	}
	return m[1], idx, true
}

// Role builds a "<prefix>-<role>" resource name for a database,
// service, process or other singleton component.
func Role(prefix, role string) string {
	return fmt.Sprintf("%s-%s", prefix, role)
}

// TunnelName is the Cloudflare tunnel name for a deploy: one tunnel
// per prefix, shared across every subdomain it serves.
func TunnelName(prefix string) string {
	return prefix
}

// FirewallName and NetworkName are the single shared firewall and
// private network every server in a deploy joins.
func FirewallName(prefix string) string { return prefix + "-firewall" }
func NetworkName(prefix string) string  { return prefix + "-network" }
