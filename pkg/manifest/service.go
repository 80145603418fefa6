package manifest

import "github.com/deployctl/deployctl/pkg/config"

// BuildServiceManifests emits one declared service's deployment (or
// stateful set when mount_path is set), service, and optional ingress.
func BuildServiceManifests(name string, svc config.ServiceSpec, p Params) []interface{} {
	spec := deploymentSpec{
		Name:         name,
		Image:        svc.Image,
		Port:         int32(svc.Port),
		Subdomain:    svc.Subdomain,
		Replicas:     1,
		RunsOn:       svc.RunsOn,
		InstanceType: svc.InstanceType,
		Env:          svc.Env,
		SecretName:   p.Prefix + "-app-secret",
		MountPath:    svc.MountPath,
		Profile:      ProfileSmall,
	}
	return buildWorkloadManifests(spec, p)
}
