// Package planner reconciles the desired server topology a
// configuration describes against the servers actually observed,
// producing the set of servers to create and the set to remove.
package planner

import (
	"sort"

	"github.com/deployctl/deployctl/pkg/config"
	"github.com/deployctl/deployctl/pkg/naming"
	"github.com/deployctl/deployctl/pkg/topology"
)

const masterGroup = "master"

// GroupSpec is one desired server group: a role name, how many
// servers it needs, and the instance type they run as.
type GroupSpec struct {
	Group        string
	Count        int
	InstanceType string
}

// Desired builds the full set of server keys a configuration wants,
// master first, then the additional groups sorted by name.
func Desired(cfg *config.Configuration) []GroupSpec {
	groups := []GroupSpec{{Group: masterGroup, Count: 1, InstanceType: cfg.Compute.Master.InstanceType}}

	if cfg.Compute.Server != nil {
		groups = append(groups, GroupSpec{Group: "server", Count: maxOne(cfg.Compute.Server.Count), InstanceType: cfg.Compute.Server.InstanceType})
		return groups
	}

	names := make([]string, 0, len(cfg.Compute.Servers))
	for name := range cfg.Compute.Servers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		spec := cfg.Compute.Servers[name]
		groups = append(groups, GroupSpec{Group: name, Count: maxOne(spec.Count), InstanceType: spec.InstanceType})
	}
	return groups
}

func maxOne(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

// desiredKeys expands Desired's groups into individual "<prefix>-<group>-<index>" keys.
func desiredKeys(prefix string, groups []GroupSpec) map[string]GroupSpec {
	keys := map[string]GroupSpec{}
	for _, g := range groups {
		for i := 1; i <= g.Count; i++ {
			keys[naming.ServerName(prefix, g.Group, i)] = g
		}
	}
	return keys
}

// Plan is the result of reconciling desired against observed: which
// keys need a new server, which observed servers are excess, ordered
// for reversed (highest-index-first) removal.
type Plan struct {
	ToCreate []string
	ToRemove []string
	Desired  map[string]GroupSpec
}

// Reconcile implements the planning algorithm: validate the master's
// instance type hasn't changed, then partition observed vs desired.
// Desired always includes the master key, so it can never end up in
// ToRemove.
func Reconcile(cfg *config.Configuration, prefix string, observed map[string]topology.Server) (*Plan, error) {
	masterKey := naming.ServerName(prefix, masterGroup, 1)
	if existing, ok := observed[masterKey]; ok {
		if existing.InstanceType != "" && existing.InstanceType != cfg.Compute.Master.InstanceType {
			return nil, config.NewConfigurationError(
				"cannot change master type from %q to %q without destroying", existing.InstanceType, cfg.Compute.Master.InstanceType)
		}
	}

	groups := Desired(cfg)
	desired := desiredKeys(prefix, groups)

	var toCreate, toRemove []string
	for key := range desired {
		if _, ok := observed[key]; !ok {
			toCreate = append(toCreate, key)
		}
	}
	for key := range observed {
		if _, ok := desired[key]; !ok {
			toRemove = append(toRemove, key)
		}
	}

	sort.Strings(toCreate)
	sort.Slice(toRemove, func(a, b int) bool {
		ga, ia, _ := naming.ParseServerName(prefix, toRemove[a])
		gb, ib, _ := naming.ParseServerName(prefix, toRemove[b])
		if ga != gb {
			return ga > gb
		}
		return ia > ib
	})

	return &Plan{ToCreate: toCreate, ToRemove: toRemove, Desired: desired}, nil
}
