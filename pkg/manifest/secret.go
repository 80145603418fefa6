package manifest

import (
	"fmt"
	"strings"

	corev1 "k8s.io/api/core/v1"

	"github.com/deployctl/deployctl/pkg/config"
)

// BuildAppSecret aggregates env_vars, computed database/service URLs
// and storage credentials into the single secret every app process
// mounts.
func BuildAppSecret(cfg *config.Configuration, p Params) *corev1.Secret {
	data := map[string]string{}
	for k, v := range cfg.EnvVars {
		data[k] = v
	}

	if db, ok := cfg.Databases["postgres"]; ok {
		host := fmt.Sprintf("%s-postgres", p.Prefix)
		data["DATABASE_URL"] = fmt.Sprintf("postgresql://%s:%s@%s:5432/%s", db.Username, db.Password, host, db.Database)
	}

	for name, svc := range cfg.Services {
		if svc.Port == 0 {
			continue
		}
		scheme := "http"
		if strings.EqualFold(name, "redis") {
			scheme = "redis"
		}
		host := fmt.Sprintf("%s-%s", p.Prefix, name)
		envName := strings.ToUpper(name) + "_URL"
		data[envName] = fmt.Sprintf("%s://%s:%d", scheme, host, svc.Port)
	}

	for bucket := range cfg.Storage {
		creds, ok := p.BucketCreds[bucket]
		if !ok {
			continue
		}
		prefix := "STORAGE_" + strings.ToUpper(bucket) + "_"
		data[prefix+"ACCESS_KEY_ID"] = creds.AccessKeyID
		data[prefix+"SECRET_ACCESS_KEY"] = creds.SecretAccessKey
		data[prefix+"ENDPOINT"] = creds.Endpoint
		data[prefix+"REGION"] = creds.Region
		data[prefix+"BUCKET"] = bucket
	}

	name := p.Prefix + "-app-secret"
	secret := &corev1.Secret{
		ObjectMeta: objectMeta(p.Namespace, p.Prefix, name),
		Type:       corev1.SecretTypeOpaque,
		StringData: data,
	}
	secret.TypeMeta.APIVersion = "v1"
	secret.TypeMeta.Kind = "Secret"
	return secret
}
