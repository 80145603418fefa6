package manifest

import (
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
)

const registryImage = "registry:2"

// BuildRegistryManifests emits the in-cluster container registry that
// BuildImage pushes to and deploy manifests pull from when no external
// registry was configured: a deployment backed by a host-path volume
// on the master group, and a NodePort service at the fixed port the
// installer points image tags at.
func BuildRegistryManifests(p Params) []interface{} {
	name := p.Prefix + "-registry"
	workload := Workload{Name: name, Profile: ProfileSmall, Replicas: 1}
	nodeSelector, affinity := BuildPlacement(workload, p.MasterGroup)

	container := corev1.Container{
		Name:  "registry",
		Image: registryImage,
		Ports: []corev1.ContainerPort{{ContainerPort: 5000}},
		Env: []corev1.EnvVar{
			{Name: "REGISTRY_STORAGE_FILESYSTEM_ROOTDIRECTORY", Value: "/var/lib/registry"},
		},
		VolumeMounts: []corev1.VolumeMount{{Name: "data", MountPath: "/var/lib/registry"}},
		Resources:    BuildResources(ProfileSmall),
	}

	deploy := &appsv1.Deployment{
		ObjectMeta: objectMeta(p.Namespace, p.Prefix, name),
		Spec: appsv1.DeploymentSpec{
			Replicas: int32Ptr(1),
			Selector: &metav1.LabelSelector{MatchLabels: Labels(p.Prefix, name)},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: Labels(p.Prefix, name)},
				Spec: corev1.PodSpec{
					NodeSelector: nodeSelector,
					Affinity:     affinity,
					Containers:   []corev1.Container{container},
					Volumes: []corev1.Volume{
						{Name: "data", VolumeSource: corev1.VolumeSource{HostPath: &corev1.HostPathVolumeSource{Path: "/mnt/data/" + name}}},
					},
				},
			},
		},
	}
	deploy.TypeMeta = metav1.TypeMeta{APIVersion: "apps/v1", Kind: "Deployment"}

	// NodePort so every node's containerd, and a push tunneled over
	// SSH, reach the registry at localhost:30500 without cluster DNS.
	svc := &corev1.Service{
		ObjectMeta: objectMeta(p.Namespace, p.Prefix, name),
		Spec: corev1.ServiceSpec{
			Type:     corev1.ServiceTypeNodePort,
			Selector: Labels(p.Prefix, name),
			Ports:    []corev1.ServicePort{{Port: 5000, TargetPort: intstr.FromInt(5000), NodePort: 30500}},
		},
	}
	svc.TypeMeta = metav1.TypeMeta{APIVersion: "v1", Kind: "Service"}

	return []interface{}{deploy, svc}
}
