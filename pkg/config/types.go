// Package config defines the declarative application configuration that
// drives a deploy: compute provider, databases, services, app processes,
// domain and secrets.
package config

// Target selects which command family a Configuration is meant for.
type Target string

const (
	TargetProduction Target = "production"
	TargetSandbox    Target = "sandbox"
)

// Configuration is the root of the declarative input.
type Configuration struct {
	Name       string                  `yaml:"name"`
	Target     Target                  `yaml:"target"`
	Compute    ComputeConfig           `yaml:"compute"`
	Cloudflare *CloudflareConfig       `yaml:"cloudflare,omitempty"`
	Git        *GitConfig              `yaml:"git,omitempty"`
	Databases  map[string]DatabaseSpec `yaml:"databases,omitempty"`
	Services   map[string]ServiceSpec  `yaml:"services,omitempty"`
	App        *AppConfig              `yaml:"app,omitempty"`
	EnvVars    map[string]string       `yaml:"env_vars,omitempty"`
	Storage    map[string]BucketSpec   `yaml:"storage,omitempty"`
}

type ComputeConfig struct {
	Provider   string                     `yaml:"provider"`
	Region     string                     `yaml:"region"`
	Location   string                     `yaml:"location"`
	Image      string                     `yaml:"image"`
	SSHKeyPath string                     `yaml:"ssh_key_path"`
	Master     ServerGroupSpec            `yaml:"master"`
	Servers    map[string]ServerGroupSpec `yaml:"servers,omitempty"`
	Server     *ServerGroupSpec           `yaml:"server,omitempty"`
}

type ServerGroupSpec struct {
	InstanceType string `yaml:"instance_type"`
	Count        int    `yaml:"count"`
}

type CloudflareConfig struct {
	APIToken  string `yaml:"api_token"`
	AccountID string `yaml:"account_id"`
	Domain    string `yaml:"domain"`
	Zone      string `yaml:"zone,omitempty"`
}

type GitConfig struct {
	Repo string `yaml:"repo"`
	PAT  string `yaml:"pat"`
}

type DatabaseSpec struct {
	Image    string `yaml:"image,omitempty"`
	Username string `yaml:"username"`
	Database string `yaml:"database"`
	Password string `yaml:"password,omitempty"`
	RunsOn   RunsOn `yaml:"runs_on,omitempty"`
}

type ServiceSpec struct {
	Image        string            `yaml:"image"`
	Port         int               `yaml:"port,omitempty"`
	Subdomain    string            `yaml:"subdomain,omitempty"`
	MountPath    string            `yaml:"mount_path,omitempty"`
	Env          map[string]string `yaml:"env,omitempty"`
	RunsOn       RunsOn            `yaml:"runs_on,omitempty"`
	InstanceType string            `yaml:"instance_type,omitempty"`
}

type AppConfig struct {
	Dockerfile string                 `yaml:"dockerfile"`
	Platform   string                 `yaml:"platform"`
	Processes  map[string]ProcessSpec `yaml:"processes"`
}

type ProcessSpec struct {
	Command      string            `yaml:"command"`
	Port         int               `yaml:"port,omitempty"`
	Subdomain    string            `yaml:"subdomain,omitempty"`
	Replicas     int               `yaml:"replicas,omitempty"`
	RunsOn       RunsOn            `yaml:"runs_on,omitempty"`
	Setup        []string          `yaml:"setup,omitempty"`
	Env          map[string]string `yaml:"env,omitempty"`
	InstanceType string            `yaml:"instance_type,omitempty"`
}

type BucketSpec struct {
	Public bool       `yaml:"public"`
	CORS   []CORSRule `yaml:"cors,omitempty"`
}

type CORSRule struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
}

// RunsOn is either a single node group name or a list of group names; it
// unmarshals from either YAML scalar or sequence form.
type RunsOn []string

func (r *RunsOn) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var single string
	if err := unmarshal(&single); err == nil {
		if single != "" {
			*r = []string{single}
		}
		return nil
	}
	var multi []string
	if err := unmarshal(&multi); err != nil {
		return err
	}
	*r = multi
	return nil
}

func (r RunsOn) IsSet() bool      { return len(r) > 0 }
func (r RunsOn) IsSingle() bool   { return len(r) == 1 }
func (r RunsOn) IsMultiple() bool { return len(r) > 1 }
