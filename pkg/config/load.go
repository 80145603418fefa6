package config

import (
	"os"
	"regexp"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads path through reader, interpolates ${NAME} references against
// the process environment, and unmarshals + validates the result.
func Load(reader Reader, path string) (*Configuration, error) {
	raw, err := reader.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config %q", path)
	}

	interpolated, err := interpolateEnv(string(raw))
	if err != nil {
		return nil, err
	}

	var cfg Configuration
	if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal config %q", path)
	}

	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// interpolateEnv replaces every ${NAME} with the value of the matching
// environment variable. An unset name is a hard load-time error.
func interpolateEnv(in string) (string, error) {
	var missing []string
	out := envVarPattern.ReplaceAllStringFunc(in, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		val, ok := os.LookupEnv(name)
		if !ok {
			missing = append(missing, name)
			return match
		}
		return val
	})
	if len(missing) > 0 {
		return "", errors.Errorf("environment variable(s) not set: %v", missing)
	}
	return out, nil
}

func applyDefaults(cfg *Configuration) {
	if cfg.Target == "" {
		cfg.Target = TargetProduction
	}
	if cfg.Compute.Master.Count == 0 {
		cfg.Compute.Master.Count = 1
	}
	for name, proc := range cfg.App.processesOrEmpty() {
		// The web process serves the zone apex when a domain is
		// configured and no explicit subdomain overrides it.
		if name == "web" && proc.Subdomain == "" && proc.Port != 0 && cfg.Cloudflare != nil {
			proc.Subdomain = "@"
		}
		if proc.Replicas == 0 {
			// A routed process needs a second replica so a rolling
			// update always has one ready behind the ingress.
			if proc.Subdomain != "" {
				proc.Replicas = 2
			} else {
				proc.Replicas = 1
			}
		}
		cfg.App.Processes[name] = proc
	}
}

func (a *AppConfig) processesOrEmpty() map[string]ProcessSpec {
	if a == nil {
		return nil
	}
	return a.Processes
}
