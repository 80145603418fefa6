package manifest

import metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

// Labels produces the uniform label set every managed object carries:
// app, instance and managed-by.
func Labels(prefix, name string) map[string]string {
	return map[string]string{
		"app":        name,
		"instance":   prefix,
		"managed-by": managedBy,
	}
}

func objectMeta(namespace, prefix, name string) metav1.ObjectMeta {
	return metav1.ObjectMeta{
		Name:      name,
		Namespace: namespace,
		Labels:    Labels(prefix, name),
	}
}
