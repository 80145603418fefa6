// Package docker holds the registry credential shapes image pulls
// need: a username/password pair for a registry host, and its
// rendering as the dockerconfigjson payload a cluster image pull
// secret carries.
package docker

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// RegistryCredentials authenticates image pulls against one registry
// host. The in-cluster registry runs unauthenticated; these exist for
// private upstream registries (ghcr.io with a git PAT, a private
// Docker Hub org).
type RegistryCredentials struct {
	RegistryURL *string `json:"registryURL,omitempty" yaml:"registryURL,omitempty"`
	Username    *string `json:"username,omitempty" yaml:"username,omitempty"`
	Password    *string `json:"password,omitempty" yaml:"password,omitempty"`
}

// GithubCredentials builds the credential pair a git PAT grants
// against GitHub's container registry.
func GithubCredentials(owner, pat string) RegistryCredentials {
	return RegistryCredentials{
		RegistryURL: lo.ToPtr("ghcr.io"),
		Username:    lo.ToPtr(owner),
		Password:    lo.ToPtr(pat),
	}
}

type ImagePullSecret struct {
	Auths map[string]ImagePullAuth `json:"auths"`
}

type ImagePullAuth struct {
	Auth     string `json:"auth"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (c RegistryCredentials) RequiresAuth() bool {
	return c.Username != nil && c.Password != nil
}

// ToImagePullSecret renders the base64 dockerconfigjson payload a
// kubernetes.io/dockerconfigjson secret's .dockerconfigjson key holds.
func (c RegistryCredentials) ToImagePullSecret() (string, error) {
	if c.Username == nil || c.Password == nil {
		return "", errors.Errorf("registry username and password must not be empty")
	}
	auth := base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("%s:%s", lo.FromPtr(c.Username), lo.FromPtr(c.Password))))
	auths := map[string]ImagePullAuth{}
	auths[lo.FromPtr(c.RegistryURL)] = ImagePullAuth{
		Auth:     auth,
		Username: lo.FromPtr(c.Username),
		Password: lo.FromPtr(c.Password),
	}
	resBytes, err := json.Marshal(ImagePullSecret{Auths: auths})
	if err != nil {
		return "", errors.Wrapf(err, "failed to generate image pull secret")
	}
	return base64.StdEncoding.EncodeToString(resBytes), nil
}
