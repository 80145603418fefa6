package manifest

import (
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
)

// deploymentSpec is the common shape service and app-process
// manifests reduce to: one container, a deployment (or a stateful set
// when mountPath is set), a clusterIP service, and an optional
// ingress when both subdomain and port are set.
type deploymentSpec struct {
	Name         string
	Image        string
	Command      []string
	Port         int32
	Subdomain    string
	Replicas     int32
	RunsOn       []string
	InstanceType string
	Env          map[string]string
	SecretName   string
	MountPath    string
	Profile      ResourceProfile
}

func buildContainer(spec deploymentSpec) corev1.Container {
	container := corev1.Container{
		Name:      spec.Name,
		Image:     spec.Image,
		Resources: BuildResources(spec.Profile),
	}
	if len(spec.Command) > 0 {
		container.Command = spec.Command
	}
	if spec.Port != 0 {
		container.Ports = []corev1.ContainerPort{{ContainerPort: spec.Port}}
	}
	for k, v := range spec.Env {
		container.Env = append(container.Env, corev1.EnvVar{Name: k, Value: v})
	}
	if spec.SecretName != "" {
		container.EnvFrom = []corev1.EnvFromSource{
			{SecretRef: &corev1.SecretEnvSource{LocalObjectReference: corev1.LocalObjectReference{Name: spec.SecretName}}},
		}
	}
	if spec.MountPath != "" {
		container.VolumeMounts = []corev1.VolumeMount{{Name: "data", MountPath: spec.MountPath}}
	}
	return container
}

// buildWorkloadManifests emits a deployment or stateful set plus a
// service, and an ingress when subdomain+port are both set.
func buildWorkloadManifests(spec deploymentSpec, p Params) []interface{} {
	name := fmt.Sprintf("%s-%s", p.Prefix, spec.Name)
	if spec.Replicas == 0 {
		spec.Replicas = 1
	}
	if spec.Profile == "" {
		spec.Profile = ProfileSmall
	}

	workload := Workload{Name: name, Profile: spec.Profile, Replicas: spec.Replicas, RunsOn: spec.RunsOn, InstanceType: spec.InstanceType}
	nodeSelector, affinity := BuildPlacement(workload, p.MasterGroup)

	container := buildContainer(spec)
	podSpec := corev1.PodSpec{
		NodeSelector: nodeSelector,
		Affinity:     affinity,
		Containers:   []corev1.Container{container},
	}
	if p.PullSecretName != "" {
		podSpec.ImagePullSecrets = []corev1.LocalObjectReference{{Name: p.PullSecretName}}
	}

	objs := make([]interface{}, 0, 3)

	if spec.MountPath != "" {
		podSpec.Volumes = []corev1.Volume{
			{Name: "data", VolumeSource: corev1.VolumeSource{HostPath: &corev1.HostPathVolumeSource{Path: "/mnt/data/" + name}}},
		}
		sts := &appsv1.StatefulSet{
			ObjectMeta: objectMeta(p.Namespace, p.Prefix, name),
			Spec: appsv1.StatefulSetSpec{
				ServiceName: name,
				Replicas:    int32Ptr(spec.Replicas),
				Selector:    &metav1.LabelSelector{MatchLabels: Labels(p.Prefix, name)},
				Template: corev1.PodTemplateSpec{
					ObjectMeta: metav1.ObjectMeta{Labels: Labels(p.Prefix, name)},
					Spec:       podSpec,
				},
			},
		}
		sts.TypeMeta = metav1.TypeMeta{APIVersion: "apps/v1", Kind: "StatefulSet"}
		objs = append(objs, sts)
	} else {
		deploy := &appsv1.Deployment{
			ObjectMeta: objectMeta(p.Namespace, p.Prefix, name),
			Spec: appsv1.DeploymentSpec{
				Replicas: int32Ptr(spec.Replicas),
				Strategy: appsv1.DeploymentStrategy{Type: appsv1.RollingUpdateDeploymentStrategyType},
				Selector: &metav1.LabelSelector{MatchLabels: Labels(p.Prefix, name)},
				Template: corev1.PodTemplateSpec{
					ObjectMeta: metav1.ObjectMeta{Labels: Labels(p.Prefix, name)},
					Spec:       podSpec,
				},
			},
		}
		deploy.TypeMeta = metav1.TypeMeta{APIVersion: "apps/v1", Kind: "Deployment"}
		objs = append(objs, deploy)
	}

	if spec.Port != 0 {
		svc := &corev1.Service{
			ObjectMeta: objectMeta(p.Namespace, p.Prefix, name),
			Spec: corev1.ServiceSpec{
				Selector: Labels(p.Prefix, name),
				Ports:    []corev1.ServicePort{{Port: spec.Port, TargetPort: intstr.FromInt(int(spec.Port))}},
			},
		}
		svc.TypeMeta = metav1.TypeMeta{APIVersion: "v1", Kind: "Service"}
		objs = append(objs, svc)
	}

	if spec.Subdomain != "" && spec.Port != 0 {
		objs = append(objs, buildIngress(p, name, p.FQDN(spec.Subdomain), spec.Port))
	}

	return objs
}

func buildIngress(p Params, name, host string, port int32) *networkingv1.Ingress {
	pathType := networkingv1.PathTypePrefix
	ing := &networkingv1.Ingress{
		ObjectMeta: objectMeta(p.Namespace, p.Prefix, name),
		Spec: networkingv1.IngressSpec{
			Rules: []networkingv1.IngressRule{
				{
					Host: host,
					IngressRuleValue: networkingv1.IngressRuleValue{
						HTTP: &networkingv1.HTTPIngressRuleValue{
							Paths: []networkingv1.HTTPIngressPath{
								{
									Path:     "/",
									PathType: &pathType,
									Backend: networkingv1.IngressBackend{
										Service: &networkingv1.IngressServiceBackend{
											Name: name,
											Port: networkingv1.ServiceBackendPort{Number: port},
										},
									},
								},
							},
						},
					},
				},
			},
		},
	}
	ing.TypeMeta = metav1.TypeMeta{APIVersion: "networking.k8s.io/v1", Kind: "Ingress"}
	return ing
}
