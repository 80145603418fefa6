package manifest

import (
	"strings"

	"github.com/deployctl/deployctl/pkg/config"
)

// BuildProcessManifests emits one app process's deployment, service
// when a port is set, and ingress when a subdomain is set. A process
// with a subdomain must already carry replicas >= 2 by the time it
// reaches here; config validation enforces that invariant, not this
// package.
func BuildProcessManifests(name string, proc config.ProcessSpec, p Params) []interface{} {
	replicas := int32(proc.Replicas)
	if replicas == 0 {
		replicas = 1
	}

	spec := deploymentSpec{
		Name:         name,
		Image:        p.AppImage,
		Command:      splitCommand(proc.Command),
		Port:         int32(proc.Port),
		Subdomain:    proc.Subdomain,
		Replicas:     replicas,
		RunsOn:       proc.RunsOn,
		InstanceType: proc.InstanceType,
		Env:          proc.Env,
		SecretName:   p.Prefix + "-app-secret",
		Profile:      ProfileMedium,
	}
	return buildWorkloadManifests(spec, p)
}

func splitCommand(command string) []string {
	if command == "" {
		return nil
	}
	return []string{"/bin/sh", "-c", strings.TrimSpace(command)}
}
