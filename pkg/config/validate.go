package config

import (
	"regexp"

	"github.com/pkg/errors"
)

// ConfigurationError marks a validation failure detected before any side
// effect runs.
type ConfigurationError struct {
	msg string
}

func (e *ConfigurationError) Error() string { return e.msg }

func newConfigErr(format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{msg: errors.Errorf(format, args...).Error()}
}

// NewConfigurationError lets callers outside this package (the
// planner, checking invariants that need observed infrastructure)
// raise the same error kind Validate does.
func NewConfigurationError(format string, args ...interface{}) *ConfigurationError {
	return newConfigErr(format, args...)
}

var sandboxSlugPattern = regexp.MustCompile(`^[a-f0-9]{6}$`)

// Validate enforces the configuration invariants that can be checked
// without touching observed infrastructure:
//
//	(i)   subdomains require cloudflare
//	(ii)  a process with a subdomain requires >= 2 replicas
//	(iii) runs_on is only valid in multi-server mode
//
// It also rejects a postgres database with no password: silently
// falling back to a well-known default would ship a guessable
// credential.
//
// Master instance_type immutability (invariant iv) needs the
// previously observed topology and is checked by the planner instead.
func Validate(cfg *Configuration) error {
	if cfg.Compute.Servers != nil && cfg.Compute.Server != nil {
		return newConfigErr("compute.servers and compute.server are mutually exclusive")
	}

	multiServer := IsMultiServerMode(cfg)

	if cfg.Cloudflare == nil {
		for name, svc := range cfg.Services {
			if svc.Subdomain != "" {
				return newConfigErr("service %q declares a subdomain but no cloudflare config is present", name)
			}
		}
		if cfg.App != nil {
			for name, proc := range cfg.App.Processes {
				if proc.Subdomain != "" {
					return newConfigErr("process %q declares a subdomain but no cloudflare config is present", name)
				}
			}
		}
	}

	if cfg.App != nil {
		for name, proc := range cfg.App.Processes {
			if proc.Subdomain != "" && proc.Replicas < 2 {
				return newConfigErr("process %q has a subdomain but only %d replica(s); requires >= 2", name, proc.Replicas)
			}
			if proc.RunsOn.IsSet() && !multiServer {
				return newConfigErr("process %q sets runs_on but compute is not configured for multiple server groups", name)
			}
		}
	}
	for name, svc := range cfg.Services {
		if svc.RunsOn.IsSet() && !multiServer {
			return newConfigErr("service %q sets runs_on but compute is not configured for multiple server groups", name)
		}
	}
	for name, db := range cfg.Databases {
		if name != "postgres" && name != "sqlite" {
			return newConfigErr("unsupported database kind %q: only postgres or sqlite are accepted", name)
		}
		if name == "postgres" && db.Password == "" {
			return newConfigErr("database %q requires a password; set databases.postgres.password (an env reference like ${POSTGRES_PASSWORD} works)", name)
		}
		if db.RunsOn.IsSet() && !multiServer {
			return newConfigErr("database %q sets runs_on but compute is not configured for multiple server groups", name)
		}
	}

	return nil
}

// IsMultiServerMode reports whether compute declares additional server
// groups beyond the master.
func IsMultiServerMode(cfg *Configuration) bool {
	return len(cfg.Compute.Servers) > 0 || cfg.Compute.Server != nil
}

// ValidateSandboxSlug enforces the 6-char lowercase-hex sandbox slug shape.
func ValidateSandboxSlug(slug string) error {
	if !sandboxSlugPattern.MatchString(slug) {
		return newConfigErr("sandbox slug %q does not match /[a-f0-9]{6}/", slug)
	}
	return nil
}
