package installer

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/deployctl/deployctl/pkg/clouds/compose"
	"github.com/deployctl/deployctl/pkg/gitinfo"
	"github.com/deployctl/deployctl/pkg/localexec"
	"github.com/deployctl/deployctl/pkg/naming"
)

const (
	sandboxComposePath = "/home/deploy/docker-compose.yaml"
	sandboxImagePath   = "/tmp/deployctl-image.tar"
)

// SetupSandbox installs docker on the sandbox host, ships the app
// image and a generated compose file over SSH, and brings the stack
// up. No cluster is involved: a sandbox is a single host running
// docker compose.
func (i *Installer) SetupSandbox(ctx context.Context) error {
	rc := i.RC

	return rc.Step(ctx, "setup sandbox", func(ctx context.Context) error {
		master, err := i.master()
		if err != nil {
			return err
		}

		installDocker := "command -v docker > /dev/null || (curl -fsSL https://get.docker.com | sudo sh && sudo usermod -aG docker deploy)"
		if _, err := i.run(master, "sandbox", installDocker); err != nil {
			return errors.Wrap(err, "installing docker on sandbox host")
		}

		appImage := ""
		if i.Config.App != nil {
			appImage, err = i.buildAndShipImage(ctx, master)
			if err != nil {
				return err
			}
		}

		project, err := compose.Generate(i.Config, compose.GenerateParams{Prefix: rc.Topology.Prefix, AppImage: appImage})
		if err != nil {
			return err
		}
		rendered, err := compose.Marshal(project)
		if err != nil {
			return err
		}
		if _, err := compose.Parse(ctx, rendered); err != nil {
			return errors.Wrap(err, "generated compose file does not load")
		}
		if err := writeRemoteFile(master, sandboxComposePath, rendered); err != nil {
			return errors.Wrap(err, "uploading compose file")
		}

		up := fmt.Sprintf("sudo docker compose -f %s up -d --remove-orphans", sandboxComposePath)
		if _, err := i.run(master, "sandbox", up); err != nil {
			return errors.Wrap(err, "bringing sandbox stack up")
		}
		return nil
	})
}

// buildAndShipImage builds the app image locally and streams the saved
// archive onto the host, where the docker daemon loads it; a sandbox
// has no registry to push through.
func (i *Installer) buildAndShipImage(ctx context.Context, master sshUploader) (string, error) {
	rc := i.RC
	app := i.Config.App

	sha, err := gitinfo.HeadShortSHA(".")
	if err != nil {
		return "", err
	}
	tag := fmt.Sprintf("%s:%s", rc.Topology.Prefix, sha)

	buildArgs := []string{"build", "-f", app.Dockerfile, "-t", tag, "."}
	if app.Platform != "" {
		buildArgs = append(buildArgs, "--platform", app.Platform)
	}
	if _, err := localexec.Run(ctx, ".", "docker", buildArgs, func(line string, isErr bool) {
		rc.OnLog("build", line)
	}); err != nil {
		return "", errors.Wrap(err, "docker build failed")
	}

	archive, err := os.CreateTemp("", "deployctl-image-*.tar")
	if err != nil {
		return "", errors.Wrap(err, "creating image archive")
	}
	defer os.Remove(archive.Name())
	defer archive.Close()

	if _, err := localexec.Output(ctx, ".", "docker", []string{"save", "-o", archive.Name(), tag}); err != nil {
		return "", errors.Wrap(err, "docker save failed")
	}
	if _, err := archive.Seek(0, 0); err != nil {
		return "", errors.Wrap(err, "rewinding image archive")
	}
	if err := master.Upload(archive, sandboxImagePath); err != nil {
		return "", errors.Wrap(err, "uploading image archive")
	}
	if _, err := i.run(master, "sandbox", fmt.Sprintf("sudo docker load -i %s && rm -f %s", sandboxImagePath, sandboxImagePath)); err != nil {
		return "", errors.Wrap(err, "loading image on sandbox host")
	}
	return tag, nil
}

// sshUploader is the master client surface buildAndShipImage needs:
// command execution plus streaming upload.
type sshUploader interface {
	Executor
	Upload(r io.Reader, remotePath string) error
}

// TeardownSandbox stops the compose stack on the master, then deletes
// every server the sandbox prefix owns; the network and firewall are
// removed by separate steps. Every part tolerates already-gone resources.
func (i *Installer) TeardownSandbox(ctx context.Context) error {
	rc := i.RC

	return rc.Step(ctx, "teardown sandbox", func(ctx context.Context) error {
		masterKey := naming.ServerName(rc.Topology.Prefix, "master", 1)

		observed, err := ObserveServers(ctx, rc.Compute, rc.Topology.Prefix)
		if err != nil {
			return err
		}
		if server, ok := observed[masterKey]; ok && server.PublicIP != "" {
			if ssh, err := i.sshFor(server); err == nil {
				down := fmt.Sprintf("sudo docker compose -f %s down --volumes || true", sandboxComposePath)
				if _, err := i.run(ssh, "sandbox", down); err != nil {
					rc.OnLog("sandbox", fmt.Sprintf("compose down failed, continuing: %v", err))
				}
			}
		}

		for name := range observed {
			if err := rc.Compute.DeleteServerByName(ctx, name); err != nil {
				rc.OnLog("sandbox", fmt.Sprintf("server %s not removed: %v", name, err))
			}
		}
		return nil
	})
}
