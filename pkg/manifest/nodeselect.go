package manifest

import (
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const serverGroupLabel = "server-group"

// BuildPlacement implements the node selection policy:
//
//	runs_on nil              -> hard selector on the master group
//	runs_on single group     -> hard selector on that group
//	runs_on multiple groups  -> soft node affinity "In" those groups
//	instance_type set        -> hard selector on instance-type AND soft
//	                             pod anti-affinity on the app label
func BuildPlacement(w Workload, masterGroup string) (nodeSelector map[string]string, affinity *corev1.Affinity) {
	switch {
	case len(w.RunsOn) == 0:
		nodeSelector = map[string]string{serverGroupLabel: masterGroup}
	case len(w.RunsOn) == 1:
		nodeSelector = map[string]string{serverGroupLabel: w.RunsOn[0]}
	default:
		affinity = &corev1.Affinity{
			NodeAffinity: &corev1.NodeAffinity{
				PreferredDuringSchedulingIgnoredDuringExecution: []corev1.PreferredSchedulingTerm{
					{
						Weight: 100,
						Preference: corev1.NodeSelectorTerm{
							MatchExpressions: []corev1.NodeSelectorRequirement{
								{Key: serverGroupLabel, Operator: corev1.NodeSelectorOpIn, Values: w.RunsOn},
							},
						},
					},
				},
			},
		}
	}

	if w.InstanceType != "" {
		if nodeSelector == nil {
			nodeSelector = map[string]string{}
		}
		nodeSelector["node.kubernetes.io/instance-type"] = w.InstanceType

		if affinity == nil {
			affinity = &corev1.Affinity{}
		}
		affinity.PodAntiAffinity = &corev1.PodAntiAffinity{
			PreferredDuringSchedulingIgnoredDuringExecution: []corev1.WeightedPodAffinityTerm{
				{
					Weight: 100,
					PodAffinityTerm: corev1.PodAffinityTerm{
						LabelSelector: &metav1.LabelSelector{MatchLabels: map[string]string{"app": w.Name}},
						TopologyKey:   "kubernetes.io/hostname",
					},
				},
			},
		}
	}

	return nodeSelector, affinity
}
