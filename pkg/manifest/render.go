package manifest

import (
	"bytes"

	"github.com/pkg/errors"
	sigsyaml "sigs.k8s.io/yaml"

	"github.com/deployctl/deployctl/pkg/config"
)

// BuildAll assembles every manifest a deploy needs from the
// configuration: the app secret, one set of manifests per declared
// database, service and process, the tunnel daemon when configured,
// a nightly backup job when both postgres and storage are declared,
// and the in-cluster registry when no external one was set.
func BuildAll(cfg *config.Configuration, p Params) []interface{} {
	var objs []interface{}

	objs = append(objs, BuildAppSecret(cfg, p))

	if pull := BuildImagePullSecret(cfg, p); pull != nil {
		objs = append(objs, pull)
	}

	for kind, db := range cfg.Databases {
		objs = append(objs, BuildDatabaseManifests(kind, db, p)...)
	}

	for name, svc := range cfg.Services {
		objs = append(objs, BuildServiceManifests(name, svc, p)...)
	}

	if cfg.App != nil {
		for name, proc := range cfg.App.Processes {
			objs = append(objs, BuildProcessManifests(name, proc, p)...)
		}
	}

	objs = append(objs, BuildTunnelManifests(p)...)

	if _, hasPostgres := cfg.Databases["postgres"]; hasPostgres {
		for bucket := range cfg.Storage {
			objs = append(objs, BuildBackupManifests(p, bucket)...)
			break
		}
	}

	if p.ClusterRegistry == "" {
		objs = append(objs, BuildRegistryManifests(p)...)
	}

	return objs
}

// Render marshals every object into a single multi-document YAML
// stream, one `---`-separated document per object, in the order they
// were generated.
func Render(objs []interface{}) ([]byte, error) {
	var buf bytes.Buffer
	for i, obj := range objs {
		if obj == nil {
			continue
		}
		doc, err := sigsyaml.Marshal(obj)
		if err != nil {
			return nil, errors.Wrapf(err, "marshaling manifest %d", i)
		}
		if buf.Len() > 0 {
			buf.WriteString("---\n")
		}
		buf.Write(doc)
	}
	return buf.Bytes(), nil
}
