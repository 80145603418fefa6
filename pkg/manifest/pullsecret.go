package manifest

import (
	"encoding/base64"
	"strings"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/deployctl/deployctl/pkg/clouds/docker"
	"github.com/deployctl/deployctl/pkg/config"
)

// BuildImagePullSecret emits the dockerconfigjson secret that lets the
// cluster pull private images with the configured git PAT. Nil when no
// git credentials are configured.
func BuildImagePullSecret(cfg *config.Configuration, p Params) *corev1.Secret {
	if cfg.Git == nil || cfg.Git.PAT == "" {
		return nil
	}

	creds := docker.GithubCredentials(repoOwner(cfg.Git.Repo), cfg.Git.PAT)
	payload, err := creds.ToImagePullSecret()
	if err != nil {
		return nil
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil
	}

	secret := &corev1.Secret{
		ObjectMeta: objectMeta(p.Namespace, p.Prefix, PullSecretName(p.Prefix)),
		Type:       corev1.SecretTypeDockerConfigJson,
		Data:       map[string][]byte{corev1.DockerConfigJsonKey: raw},
	}
	secret.TypeMeta = metav1.TypeMeta{APIVersion: "v1", Kind: "Secret"}
	return secret
}

// PullSecretName is the fixed name workload pods reference.
func PullSecretName(prefix string) string {
	return prefix + "-registry-auth"
}

// repoOwner pulls the owner segment out of a repo reference like
// "github.com/acme/app" or "git@github.com:acme/app.git".
func repoOwner(repo string) string {
	repo = strings.TrimSuffix(repo, ".git")
	repo = strings.ReplaceAll(repo, ":", "/")
	parts := strings.Split(repo, "/")
	if len(parts) < 2 {
		return repo
	}
	return parts[len(parts)-2]
}
