// Package compose generates the docker-compose project a sandbox
// target runs and parses compose YAML back into the typed project
// model, so the installer can verify what it wrote is what the host
// will run.
package compose

import (
	"context"
	"path"
	"path/filepath"

	"github.com/compose-spec/compose-go/loader"
	"github.com/compose-spec/compose-go/types"
)

type Config struct {
	Project *types.Project
}

// ReadDockerCompose loads a compose file from disk relative to
// workingDir, without interpolation: sandbox compose files are fully
// rendered before they are written, so there are no variables left to
// resolve.
func ReadDockerCompose(ctx context.Context, workingDir, composeFilePath string) (Config, error) {
	if !filepath.IsAbs(composeFilePath) {
		composeFilePath = path.Join(workingDir, composeFilePath)
	} else {
		workingDir = path.Dir(composeFilePath)
	}
	return load(ctx, workingDir, types.ConfigFile{Filename: composeFilePath})
}

// Parse loads compose YAML already held in memory, the round-trip
// check Generate's output goes through before the installer ships it.
func Parse(ctx context.Context, content []byte) (Config, error) {
	return load(ctx, "", types.ConfigFile{Filename: "docker-compose.yaml", Content: content})
}

func load(ctx context.Context, workingDir string, file types.ConfigFile) (Config, error) {
	var res Config
	project, err := loader.LoadWithContext(ctx, types.ConfigDetails{
		WorkingDir:  workingDir,
		ConfigFiles: []types.ConfigFile{file},
	}, func(options *loader.Options) {
		options.SkipNormalization = true
		options.SkipConsistencyCheck = true
		options.Interpolate.LookupValue = func(key string) (string, bool) {
			return "", false
		}
	})
	if err != nil {
		return res, err
	}
	res.Project = project
	return res, nil
}
