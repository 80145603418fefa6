package manifest

import (
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"

	"github.com/deployctl/deployctl/pkg/config"
)

const defaultPostgresImage = "postgres:16-alpine"

// BuildDatabaseManifests emits a stateful set, headless service and
// credentials secret for one declared database. The stateful set
// mounts a host-path volume rather than a dynamic PVC, since the
// installer provisions and attaches the block device itself in the
// ProvisionVolumes step.
//
// sqlite is file-backed: it has no server process, no port and no
// credentials, only the database file inside the app container's
// volume, so it contributes no manifests of its own.
func BuildDatabaseManifests(kind string, db config.DatabaseSpec, p Params) []interface{} {
	if kind != "postgres" {
		return nil
	}

	name := fmt.Sprintf("%s-%s", p.Prefix, kind)
	image := db.Image
	if image == "" {
		image = defaultPostgresImage
	}

	secret := &corev1.Secret{
		ObjectMeta: objectMeta(p.Namespace, p.Prefix, name+"-credentials"),
		Type:       corev1.SecretTypeOpaque,
		StringData: map[string]string{
			"POSTGRES_USER":     db.Username,
			"POSTGRES_PASSWORD": db.Password,
			"POSTGRES_DB":       db.Database,
		},
	}
	secret.TypeMeta = metav1.TypeMeta{APIVersion: "v1", Kind: "Secret"}

	workload := Workload{Name: name, Profile: ProfileSmall, Replicas: 1, RunsOn: db.RunsOn}
	nodeSelector, affinity := BuildPlacement(workload, p.MasterGroup)

	container := corev1.Container{
		Name:  kind,
		Image: image,
		Ports: []corev1.ContainerPort{{ContainerPort: 5432}},
		EnvFrom: []corev1.EnvFromSource{
			{SecretRef: &corev1.SecretEnvSource{LocalObjectReference: corev1.LocalObjectReference{Name: secret.Name}}},
		},
		VolumeMounts: []corev1.VolumeMount{
			{Name: "data", MountPath: "/var/lib/postgresql/data"},
		},
		ReadinessProbe: &corev1.Probe{
			ProbeHandler: corev1.ProbeHandler{
				Exec: &corev1.ExecAction{Command: []string{"pg_isready", "-U", db.Username}},
			},
			InitialDelaySeconds: 5,
			PeriodSeconds:       10,
		},
		Resources: BuildResources(ProfileSmall),
	}

	sts := &appsv1.StatefulSet{
		ObjectMeta: objectMeta(p.Namespace, p.Prefix, name),
		Spec: appsv1.StatefulSetSpec{
			ServiceName: name,
			Replicas:    int32Ptr(1),
			Selector:    &metav1.LabelSelector{MatchLabels: Labels(p.Prefix, name)},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: Labels(p.Prefix, name)},
				Spec: corev1.PodSpec{
					NodeSelector: nodeSelector,
					Affinity:     affinity,
					Containers:   []corev1.Container{container},
					Volumes: []corev1.Volume{
						{
							Name: "data",
							VolumeSource: corev1.VolumeSource{
								HostPath: &corev1.HostPathVolumeSource{Path: "/mnt/data/" + name},
							},
						},
					},
				},
			},
		},
	}
	sts.TypeMeta = metav1.TypeMeta{APIVersion: "apps/v1", Kind: "StatefulSet"}

	svc := &corev1.Service{
		ObjectMeta: objectMeta(p.Namespace, p.Prefix, name),
		Spec: corev1.ServiceSpec{
			ClusterIP: corev1.ClusterIPNone,
			Selector:  Labels(p.Prefix, name),
			Ports:     []corev1.ServicePort{{Port: 5432, TargetPort: intstr.FromInt(5432)}},
		},
	}
	svc.TypeMeta = metav1.TypeMeta{APIVersion: "v1", Kind: "Service"}

	return []interface{}{secret, sts, svc}
}

func int32Ptr(v int32) *int32 { return &v }
