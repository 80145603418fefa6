package docker

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	. "github.com/onsi/gomega"
	"github.com/samber/lo"
)

func Test_ToImagePullSecret(t *testing.T) {
	RegisterTestingT(t)

	tests := []struct {
		name        string
		creds       RegistryCredentials
		expectError string
	}{
		{
			name: "happy-path",
			creds: RegistryCredentials{
				RegistryURL: lo.ToPtr("ghcr.io"),
				Username:    lo.ToPtr("user"),
				Password:    lo.ToPtr("password"),
			},
		},
		{
			name:        "error on empty",
			creds:       RegistryCredentials{},
			expectError: "must not be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.creds.ToImagePullSecret()
			if tt.expectError != "" {
				Expect(err).NotTo(BeNil())
				Expect(err.Error()).To(ContainSubstring(tt.expectError))
				return
			}
			Expect(err).To(BeNil())

			raw, err := base64.StdEncoding.DecodeString(res)
			Expect(err).To(BeNil())
			var secret ImagePullSecret
			Expect(json.Unmarshal(raw, &secret)).To(Succeed())
			Expect(secret.Auths).To(HaveKey("ghcr.io"))
			Expect(secret.Auths["ghcr.io"].Username).To(Equal("user"))
			Expect(secret.Auths["ghcr.io"].Auth).To(Equal(base64.StdEncoding.EncodeToString([]byte("user:password"))))
		})
	}
}

func Test_GithubCredentials(t *testing.T) {
	RegisterTestingT(t)

	creds := GithubCredentials("acme", "ghp_token")
	Expect(creds.RequiresAuth()).To(BeTrue())
	Expect(lo.FromPtr(creds.RegistryURL)).To(Equal("ghcr.io"))
}
