package compute

import "github.com/pkg/errors"

// ProviderConfig carries the credentials and placement defaults every
// adapter constructor needs; fields unused by a given provider are
// ignored by its constructor.
type ProviderConfig struct {
	APIToken string
	Region   string
	Location string
}

type Constructor func(cfg ProviderConfig) (Provider, error)

// registry is populated by each adapter package's init(), the same
// register-by-import pattern used for pluggable provider backends
// elsewhere in the Go ecosystem (SQL drivers, image codecs).
var registry = map[string]Constructor{}

func Register(name string, ctor Constructor) {
	registry[name] = ctor
}

func New(name string, cfg ProviderConfig) (Provider, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, errors.Errorf("unknown compute provider %q", name)
	}
	return ctor(cfg)
}
