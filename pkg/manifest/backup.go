package manifest

import (
	"fmt"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const backupImage = "postgres:16-alpine"

// BuildBackupManifests emits a nightly CronJob that dumps the postgres
// database into the named bucket through an S3-compatible endpoint,
// plus the service account and credentials secret it runs as. It is
// only meaningful when both a postgres database and a storage bucket
// are declared; callers skip it otherwise.
func BuildBackupManifests(p Params, bucket string) []interface{} {
	creds, ok := p.BucketCreds[bucket]
	if !ok {
		return nil
	}

	name := p.Prefix + "-backup"
	dbHost := p.Prefix + "-postgres"

	sa := &corev1.ServiceAccount{ObjectMeta: objectMeta(p.Namespace, p.Prefix, name)}
	sa.TypeMeta = metav1.TypeMeta{APIVersion: "v1", Kind: "ServiceAccount"}

	secret := &corev1.Secret{
		ObjectMeta: objectMeta(p.Namespace, p.Prefix, name+"-credentials"),
		Type:       corev1.SecretTypeOpaque,
		StringData: map[string]string{
			"AWS_ACCESS_KEY_ID":     creds.AccessKeyID,
			"AWS_SECRET_ACCESS_KEY": creds.SecretAccessKey,
			"S3_ENDPOINT":           creds.Endpoint,
			"S3_BUCKET":             bucket,
		},
	}
	secret.TypeMeta = metav1.TypeMeta{APIVersion: "v1", Kind: "Secret"}

	dumpCommand := fmt.Sprintf(
		`pg_dump -h %s -U "$POSTGRES_USER" "$POSTGRES_DB" | aws s3 cp --endpoint-url "$S3_ENDPOINT" - "s3://$S3_BUCKET/%s/$(date +%%Y-%%m-%%dT%%H-%%M-%%S).sql"`,
		dbHost, p.Prefix,
	)

	container := corev1.Container{
		Name:    "backup",
		Image:   backupImage,
		Command: []string{"/bin/sh", "-c", dumpCommand},
		EnvFrom: []corev1.EnvFromSource{
			{SecretRef: &corev1.SecretEnvSource{LocalObjectReference: corev1.LocalObjectReference{Name: p.Prefix + "-postgres-credentials"}}},
			{SecretRef: &corev1.SecretEnvSource{LocalObjectReference: corev1.LocalObjectReference{Name: secret.Name}}},
		},
		Resources: BuildResources(ProfileMinimal),
	}

	cron := &batchv1.CronJob{
		ObjectMeta: objectMeta(p.Namespace, p.Prefix, name),
		Spec: batchv1.CronJobSpec{
			Schedule: "0 3 * * *",
			JobTemplate: batchv1.JobTemplateSpec{
				Spec: batchv1.JobSpec{
					Template: corev1.PodTemplateSpec{
						ObjectMeta: metav1.ObjectMeta{Labels: Labels(p.Prefix, name)},
						Spec: corev1.PodSpec{
							ServiceAccountName: sa.Name,
							RestartPolicy:      corev1.RestartPolicyOnFailure,
							Containers:         []corev1.Container{container},
						},
					},
				},
			},
		},
	}
	cron.TypeMeta = metav1.TypeMeta{APIVersion: "batch/v1", Kind: "CronJob"}

	return []interface{}{sa, secret, cron}
}
