package manifest

import (
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
)

// BuildResources maps a profile onto request/limit memory quantities:
// requests use the table value, limits double it.
func BuildResources(profile ResourceProfile) corev1.ResourceRequirements {
	mb, ok := profileMemoryMB[profile]
	if !ok {
		mb = profileMemoryMB[ProfileSmall]
	}
	return corev1.ResourceRequirements{
		Requests: corev1.ResourceList{
			corev1.ResourceMemory: *resource.NewQuantity(mb*1024*1024, resource.BinarySI),
		},
		Limits: corev1.ResourceList{
			corev1.ResourceMemory: *resource.NewQuantity(mb*2*1024*1024, resource.BinarySI),
		},
	}
}
