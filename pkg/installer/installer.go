// Package installer implements the remote-command steps a deploy runs
// once infrastructure exists: cluster setup, tunnel, registry, volume
// provisioning, image build and push, manifest rollout, and the
// teardown sequences destroy commands compose. Every step mutates the
// world through the Context's clients and reports progress through
// its callbacks; nothing here holds state past the run.
package installer

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/deployctl/deployctl/pkg/config"
	"github.com/deployctl/deployctl/pkg/manifest"
	"github.com/deployctl/deployctl/pkg/runcontext"
	"github.com/deployctl/deployctl/pkg/sshclient"
	"github.com/deployctl/deployctl/pkg/sshkey"
	"github.com/deployctl/deployctl/pkg/topology"
)

const (
	deployUser       = "deploy"
	sshPort          = 22
	clusterAPIPort   = "6443"
	registryNodePort = "30500"
	namespace        = "default"

	remoteRetries = 3
	remoteBackoff = 2 * time.Second
)

// Executor is the slice of the SSH client steps actually use, kept
// narrow so tests can fake a remote host.
type Executor interface {
	Execute(command string, opts sshclient.ExecOptions) (sshclient.ExecResult, error)
	ExecuteWithRetry(command string, opts sshclient.ExecOptions, retries int, backoff time.Duration) (sshclient.ExecResult, error)
	ReadFile(path string) []byte
}

// Installer carries the per-run wiring every step shares: the config,
// the Context, and the SSH identity minted or loaded for this run.
type Installer struct {
	Config *config.Configuration
	RC     *runcontext.Context
	Keys   *sshkey.KeyPair

	tunnelToken string
	bucketCreds map[string]manifest.BucketCredentials
	appImage    string
}

func New(cfg *config.Configuration, rc *runcontext.Context, keys *sshkey.KeyPair) *Installer {
	return &Installer{Config: cfg, RC: rc, Keys: keys, bucketCreds: map[string]manifest.BucketCredentials{}}
}

// sshFor opens a client to one server as the deploy user.
func (i *Installer) sshFor(server topology.Server) (*sshclient.Client, error) {
	if server.PublicIP == "" {
		return nil, errors.Errorf("server %q has no public IP", server.ID)
	}
	return sshclient.New(server.PublicIP, sshPort, deployUser, i.Keys.PrivatePEM)
}

// master opens a client to the master server, the host every cluster
// mutation goes through.
func (i *Installer) master() (*sshclient.Client, error) {
	if i.RC.Topology.MasterIP == "" {
		return nil, errors.New("topology has no master address; infrastructure step must run first")
	}
	return sshclient.New(i.RC.Topology.MasterIP, sshPort, deployUser, i.Keys.PrivatePEM)
}

// run executes a remote command with connection retry, streaming each
// output line into on_log under the given category.
func (i *Installer) run(ssh Executor, category, command string) (sshclient.ExecResult, error) {
	opts := sshclient.DefaultExecOptions()
	opts.StreamCallback = func(line string) {
		i.RC.OnLog(category, line)
	}
	return ssh.ExecuteWithRetry(command, opts, remoteRetries, remoteBackoff)
}

// manifestParams assembles the generator inputs from everything the
// preceding steps persisted on the installer and the topology.
func (i *Installer) manifestParams() manifest.Params {
	p := manifest.Params{
		Prefix:      i.RC.Topology.Prefix,
		Namespace:   namespace,
		MasterGroup: "master",
		TunnelToken: i.tunnelToken,
		BucketCreds: i.bucketCreds,
		AppImage:    i.appImage,
	}
	if i.Config.Cloudflare != nil {
		p.ZoneDomain = i.Config.Cloudflare.Domain
	}
	if i.Config.Git != nil && i.Config.Git.PAT != "" {
		p.PullSecretName = manifest.PullSecretName(i.RC.Topology.Prefix)
	}
	return p
}

// writeRemoteFile ships content to path on the remote host.
func writeRemoteFile(ssh *sshclient.Client, path string, content []byte) error {
	return ssh.Upload(strings.NewReader(string(content)), path)
}

// Abortable returns ctx.Err wrapped for the between-steps cancellation
// check commands perform; steps themselves never poll it mid-flight.
func Abortable(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "run aborted")
	}
	return nil
}
