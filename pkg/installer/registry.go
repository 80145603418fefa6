package installer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/deployctl/deployctl/pkg/manifest"
	"github.com/deployctl/deployctl/pkg/sshclient"
	"github.com/deployctl/deployctl/pkg/waiter"
)

const (
	registryReadyAttempts = 60
	registryReadyInterval = 2 * time.Second

	registryManifestPath = "/tmp/deployctl-registry.yaml"
)

// SetupRegistry ensures the storage bucket app workloads get
// credentials for, applies the in-cluster registry, and blocks until
// the registry answers the distribution API's version check — the
// signal BuildImage can push.
func (i *Installer) SetupRegistry(ctx context.Context) error {
	rc := i.RC

	return rc.Step(ctx, "setup registry", func(ctx context.Context) error {
		if err := i.ensureBuckets(ctx); err != nil {
			return err
		}

		master, err := i.master()
		if err != nil {
			return err
		}

		rendered, err := manifest.Render(manifest.BuildRegistryManifests(i.manifestParams()))
		if err != nil {
			return err
		}
		if err := writeRemoteFile(master, registryManifestPath, rendered); err != nil {
			return errors.Wrap(err, "uploading registry manifest")
		}
		if _, err := i.run(master, "registry", fmt.Sprintf("%s apply -f %s", kubectlBin, registryManifestPath)); err != nil {
			return errors.Wrap(err, "applying registry manifest")
		}

		check := fmt.Sprintf("curl -sf http://localhost:%s/v2/", registryNodePort)
		return waiter.Poll(registryReadyAttempts, registryReadyInterval, "waiting for registry to answer /v2/", func() (bool, error) {
			res, err := master.Execute(check, sshclient.ExecOptions{RaiseOnError: false, Timeout: 10 * time.Second})
			if err != nil {
				return false, err
			}
			return res.ExitCode == 0, nil
		})
	})
}

// ensureBuckets provisions every configured storage bucket and records
// the credentials the app secret injects.
func (i *Installer) ensureBuckets(ctx context.Context) error {
	cf := i.Config.Cloudflare
	if i.RC.Cloudflare == nil || cf == nil {
		return nil
	}
	for name, spec := range i.Config.Storage {
		// bucket creation rides out transient API hiccups with
		// backoff; a hard failure still surfaces
		if _, err := waiter.Retry(3, time.Second, func() (struct{}, error) {
			return struct{}{}, i.RC.Cloudflare.EnsureBucket(ctx, name)
		}); err != nil {
			return err
		}
		for _, rule := range spec.CORS {
			if err := i.RC.Cloudflare.ConfigureCORS(ctx, name, rule.AllowedOrigins, rule.AllowedMethods); err != nil {
				return err
			}
		}
		i.bucketCreds[name] = r2Credentials(cf.AccountID, cf.APIToken)
	}
	return nil
}

// r2Credentials derives S3-gateway credentials from the API token, the
// documented token-to-S3 mapping: the secret is the hex SHA-256 of the
// token value.
func r2Credentials(accountID, apiToken string) manifest.BucketCredentials {
	sum := sha256.Sum256([]byte(apiToken))
	return manifest.BucketCredentials{
		AccessKeyID:     accountID,
		SecretAccessKey: hex.EncodeToString(sum[:]),
		Endpoint:        fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID),
		Region:          "auto",
	}
}
