package config

import (
	"os"
	"testing"

	. "github.com/onsi/gomega"
)

func Test_Load(t *testing.T) {
	RegisterTestingT(t)

	tests := []struct {
		name    string
		yaml    string
		env     map[string]string
		wantErr string
	}{
		{
			name: "happy path",
			yaml: `
name: myapp
target: production
compute:
  provider: hetzner
  location: nbg1
  master:
    instance_type: cpx21
    count: 1
services:
  redis:
    image: redis:7
    port: 6379
`,
		},
		{
			name: "env interpolation",
			yaml: `
name: myapp
compute:
  provider: hetzner
  location: nbg1
  master:
    instance_type: ${INSTANCE_TYPE}
    count: 1
`,
			env: map[string]string{"INSTANCE_TYPE": "cpx21"},
		},
		{
			name:    "missing env var fails",
			yaml:    "name: myapp\ncompute:\n  master:\n    instance_type: ${UNSET_VAR}\n",
			wantErr: "UNSET_VAR",
		},
		{
			name: "subdomain without cloudflare fails",
			yaml: `
name: myapp
compute:
  master:
    instance_type: cpx21
    count: 1
services:
  web:
    image: web:latest
    port: 80
    subdomain: web
`,
			wantErr: "cloudflare",
		},
		{
			name: "postgres without password fails",
			yaml: `
name: myapp
compute:
  master:
    instance_type: cpx21
    count: 1
databases:
  postgres:
    username: app
    database: app
`,
			wantErr: "password",
		},
		{
			name: "runs_on in single-server mode fails",
			yaml: `
name: myapp
compute:
  master:
    instance_type: cpx21
    count: 1
services:
  web:
    image: web:latest
    port: 80
    runs_on: workers
`,
			wantErr: "runs_on",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_ = os.Unsetenv("UNSET_VAR")

			reader := &InlineConfigReader{WorkDir: "/work", Configs: map[string]string{"deploy.yaml": tt.yaml}}
			cfg, err := Load(reader, "/work/deploy.yaml")

			if tt.wantErr != "" {
				Expect(err).NotTo(BeNil())
				Expect(err.Error()).To(ContainSubstring(tt.wantErr))
				return
			}
			Expect(err).To(BeNil())
			Expect(cfg.Name).To(Equal("myapp"))
		})
	}
}

func Test_Load_WebProcessDefaultsToApexWithTwoReplicas(t *testing.T) {
	RegisterTestingT(t)

	yaml := `
name: myapp
compute:
  provider: hetzner
  location: nbg1
  master:
    instance_type: cpx21
    count: 1
cloudflare:
  api_token: token
  account_id: account
  domain: example.com
app:
  dockerfile: Dockerfile
  processes:
    web:
      command: bin/rails server
      port: 3000
    worker:
      command: bin/jobs
`
	reader := &InlineConfigReader{WorkDir: "/work", Configs: map[string]string{"deploy.yaml": yaml}}
	cfg, err := Load(reader, "/work/deploy.yaml")
	Expect(err).To(BeNil())

	web := cfg.App.Processes["web"]
	Expect(web.Subdomain).To(Equal("@"))
	Expect(web.Replicas).To(Equal(2))

	worker := cfg.App.Processes["worker"]
	Expect(worker.Subdomain).To(BeEmpty())
	Expect(worker.Replicas).To(Equal(1))
}

func Test_ValidateSandboxSlug(t *testing.T) {
	RegisterTestingT(t)

	Expect(ValidateSandboxSlug("a1b2c3")).To(BeNil())
	Expect(ValidateSandboxSlug("A1B2C3")).NotTo(BeNil())
	Expect(ValidateSandboxSlug("a1b2")).NotTo(BeNil())
	Expect(ValidateSandboxSlug("")).NotTo(BeNil())
}
