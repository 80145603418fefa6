package compose

import (
	"fmt"
	"sort"
	"strings"

	"github.com/compose-spec/compose-go/types"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/deployctl/deployctl/pkg/config"
)

// GenerateParams carries the deploy-time values the generator splices
// into the project: the prefix container names hang off and the app
// image the processes run.
type GenerateParams struct {
	Prefix   string
	AppImage string
}

// Generate builds the docker-compose project a sandbox runs: one
// service per declared database, service and app process, wired
// together over container-name DNS the same way the cluster manifests
// wire workloads over cluster DNS.
func Generate(cfg *config.Configuration, p GenerateParams) (*types.Project, error) {
	project := &types.Project{Name: p.Prefix}

	appEnv := appEnvironment(cfg, p)

	for _, kind := range sortedKeys(cfg.Databases) {
		db := cfg.Databases[kind]
		svc, vol, err := databaseService(kind, db, p)
		if err != nil {
			return nil, err
		}
		if svc != nil {
			project.Services = append(project.Services, *svc)
		}
		if vol != "" {
			addVolume(project, vol)
		}
	}

	for _, name := range sortedKeys(cfg.Services) {
		svc := cfg.Services[name]
		service := types.ServiceConfig{
			Name:          name,
			ContainerName: p.Prefix + "-" + name,
			Image:         svc.Image,
			Environment:   toMapping(svc.Env),
			Restart:       "unless-stopped",
		}
		if svc.Port != 0 {
			service.Ports = []types.ServicePortConfig{{Target: uint32(svc.Port), Published: fmt.Sprintf("%d", svc.Port)}}
		}
		if svc.MountPath != "" {
			vol := p.Prefix + "-" + name + "-data"
			service.Volumes = []types.ServiceVolumeConfig{{Type: types.VolumeTypeVolume, Source: vol, Target: svc.MountPath}}
			addVolume(project, vol)
		}
		project.Services = append(project.Services, service)
	}

	if cfg.App != nil {
		dependsOn := types.DependsOnConfig{}
		for _, kind := range sortedKeys(cfg.Databases) {
			if kind == "sqlite" {
				continue
			}
			dependsOn[kind] = types.ServiceDependency{Condition: types.ServiceConditionStarted}
		}
		for _, name := range sortedKeys(cfg.App.Processes) {
			proc := cfg.App.Processes[name]
			service := types.ServiceConfig{
				Name:          name,
				ContainerName: p.Prefix + "-" + name,
				Image:         p.AppImage,
				Command:       types.ShellCommand(strings.Fields(proc.Command)),
				Environment:   mergeMappings(appEnv, toMapping(proc.Env)),
				Restart:       "unless-stopped",
			}
			if len(dependsOn) > 0 {
				service.DependsOn = dependsOn
			}
			if proc.Port != 0 {
				service.Ports = []types.ServicePortConfig{{Target: uint32(proc.Port), Published: fmt.Sprintf("%d", proc.Port)}}
			}
			project.Services = append(project.Services, service)
		}
	}

	return project, nil
}

// Marshal renders the project as docker-compose YAML ready to write to
// the sandbox host. The services section marshals as a map keyed by
// service name, the only shape the loader accepts back.
func Marshal(project *types.Project) ([]byte, error) {
	services := map[string]types.ServiceConfig{}
	for _, svc := range project.Services {
		services[svc.Name] = svc
	}
	doc := map[string]interface{}{"services": services}
	if len(project.Volumes) > 0 {
		doc["volumes"] = project.Volumes
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling compose project")
	}
	return out, nil
}

func databaseService(kind string, db config.DatabaseSpec, p GenerateParams) (*types.ServiceConfig, string, error) {
	switch kind {
	case "postgres":
		image := db.Image
		if image == "" {
			image = "postgres:16"
		}
		vol := p.Prefix + "-postgres-data"
		svc := &types.ServiceConfig{
			Name:          kind,
			ContainerName: p.Prefix + "-postgres",
			Image:         image,
			Environment: toMapping(map[string]string{
				"POSTGRES_USER":     db.Username,
				"POSTGRES_PASSWORD": db.Password,
				"POSTGRES_DB":       db.Database,
			}),
			Volumes: []types.ServiceVolumeConfig{{Type: types.VolumeTypeVolume, Source: vol, Target: "/var/lib/postgresql/data"}},
			Restart: "unless-stopped",
		}
		return svc, vol, nil
	case "sqlite":
		// sqlite lives inside the app container; there is no server
		// process and no volume to declare.
		return nil, "", nil
	default:
		return nil, "", errors.Errorf("unsupported database kind %q", kind)
	}
}

// appEnvironment mirrors the app secret the cluster deploy renders:
// env_vars plus computed DATABASE_URL and per-service URLs, addressed
// by compose service name instead of cluster DNS.
func appEnvironment(cfg *config.Configuration, p GenerateParams) types.MappingWithEquals {
	env := toMapping(cfg.EnvVars)

	if db, ok := cfg.Databases["postgres"]; ok {
		url := fmt.Sprintf("postgresql://%s:%s@postgres:5432/%s", db.Username, db.Password, db.Database)
		env["DATABASE_URL"] = &url
	}

	for name, svc := range cfg.Services {
		if svc.Port == 0 {
			continue
		}
		scheme := "http"
		if strings.EqualFold(name, "redis") {
			scheme = "redis"
		}
		url := fmt.Sprintf("%s://%s:%d", scheme, name, svc.Port)
		envName := strings.ToUpper(name) + "_URL"
		env[envName] = &url
	}

	return env
}

func addVolume(project *types.Project, name string) {
	if project.Volumes == nil {
		project.Volumes = types.Volumes{}
	}
	project.Volumes[name] = types.VolumeConfig{Name: name}
}

func toMapping(in map[string]string) types.MappingWithEquals {
	out := types.MappingWithEquals{}
	for k, v := range in {
		v := v
		out[k] = &v
	}
	return out
}

func mergeMappings(base, overlay types.MappingWithEquals) types.MappingWithEquals {
	out := types.MappingWithEquals{}
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
