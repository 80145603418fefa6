package manifest

import (
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const cloudflaredImage = "cloudflare/cloudflared:latest"

// BuildTunnelManifests emits the cloudflared deployment that carries
// inbound traffic from the tunnel into the cluster. It runs on the
// master group like any other cluster-system workload and needs no
// service of its own: it dials out to Cloudflare's edge.
func BuildTunnelManifests(p Params) []interface{} {
	if p.TunnelToken == "" {
		return nil
	}

	name := p.Prefix + "-cloudflared"
	workload := Workload{Name: name, Profile: ProfileMinimal, Replicas: 2}
	nodeSelector, affinity := BuildPlacement(workload, p.MasterGroup)

	secret := &corev1.Secret{
		ObjectMeta: objectMeta(p.Namespace, p.Prefix, name+"-token"),
		Type:       corev1.SecretTypeOpaque,
		StringData: map[string]string{"TUNNEL_TOKEN": p.TunnelToken},
	}
	secret.TypeMeta = metav1.TypeMeta{APIVersion: "v1", Kind: "Secret"}

	container := corev1.Container{
		Name:    "cloudflared",
		Image:   cloudflaredImage,
		Command: []string{"cloudflared", "tunnel", "--no-autoupdate", "run"},
		EnvFrom: []corev1.EnvFromSource{
			{SecretRef: &corev1.SecretEnvSource{LocalObjectReference: corev1.LocalObjectReference{Name: secret.Name}}},
		},
		Resources: BuildResources(ProfileMinimal),
	}

	deploy := &appsv1.Deployment{
		ObjectMeta: objectMeta(p.Namespace, p.Prefix, name),
		Spec: appsv1.DeploymentSpec{
			Replicas: int32Ptr(2),
			Selector: &metav1.LabelSelector{MatchLabels: Labels(p.Prefix, name)},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: Labels(p.Prefix, name)},
				Spec: corev1.PodSpec{
					NodeSelector: nodeSelector,
					Affinity:     affinity,
					Containers:   []corev1.Container{container},
				},
			},
		},
	}
	deploy.TypeMeta = metav1.TypeMeta{APIVersion: "apps/v1", Kind: "Deployment"}

	return []interface{}{secret, deploy}
}
