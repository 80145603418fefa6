package installer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	dockerclient "github.com/docker/docker/client"
	"github.com/pkg/errors"

	"github.com/deployctl/deployctl/pkg/gitinfo"
	"github.com/deployctl/deployctl/pkg/localexec"
)

const keepImageTags = 3

func newDockerClient() (*dockerclient.Client, error) {
	cli, err := dockerclient.NewClientWithOpts(dockerclient.FromEnv, dockerclient.WithAPIVersionNegotiation())
	if err != nil {
		return nil, errors.Wrap(err, "connecting to local docker daemon")
	}
	return cli, nil
}

// BuildImage builds the app image from the working tree, tags it with
// the HEAD short SHA, and pushes it to the in-cluster registry through
// an SSH forward to the master's registry port.
func (i *Installer) BuildImage(ctx context.Context) error {
	rc := i.RC
	app := i.Config.App
	if app == nil {
		return nil
	}

	return rc.Step(ctx, "build image", func(ctx context.Context) error {
		sha, err := gitinfo.HeadShortSHA(".")
		if err != nil {
			return err
		}
		localTag := fmt.Sprintf("%s:%s", rc.Topology.Prefix, sha)

		buildArgs := []string{"build", "-f", app.Dockerfile, "-t", localTag, "."}
		if app.Platform != "" {
			buildArgs = append(buildArgs, "--platform", app.Platform)
		}
		if _, err := localexec.Run(ctx, ".", "docker", buildArgs, func(line string, isErr bool) {
			rc.OnLog("build", line)
		}); err != nil {
			return errors.Wrap(err, "docker build failed")
		}

		master, err := i.master()
		if err != nil {
			return err
		}
		forward, err := master.LocalForward("localhost:" + registryNodePort)
		if err != nil {
			return errors.Wrap(err, "opening registry forward")
		}
		defer forward.Close()

		cli, err := newDockerClient()
		if err != nil {
			return err
		}
		defer cli.Close()

		pushTag := fmt.Sprintf("%s/%s", forward.Addr, localTag)
		if err := cli.ImageTag(ctx, localTag, pushTag); err != nil {
			return errors.Wrapf(err, "tagging %s for push", localTag)
		}

		if _, err := localexec.Run(ctx, ".", "docker", []string{"push", pushTag}, func(line string, isErr bool) {
			rc.OnLog("push", line)
		}); err != nil {
			return errors.Wrap(err, "docker push failed")
		}

		// Manifests reference the image by the node-local port every
		// containerd resolves, not the ephemeral forward address.
		i.appImage = fmt.Sprintf("localhost:%s/%s", registryNodePort, localTag)
		return nil
	})
}

// CleanupImages drops local images for this prefix beyond the newest
// three tags, keeping rebuild caches bounded without touching other
// projects' images.
func (i *Installer) CleanupImages(ctx context.Context) error {
	rc := i.RC

	return rc.Step(ctx, "cleanup images", func(ctx context.Context) error {
		cli, err := newDockerClient()
		if err != nil {
			return err
		}
		defer cli.Close()

		summaries, err := cli.ImageList(ctx, image.ListOptions{
			Filters: filters.NewArgs(filters.Arg("reference", rc.Topology.Prefix+":*")),
		})
		if err != nil {
			return errors.Wrap(err, "listing local images")
		}

		type tagged struct {
			tag     string
			created int64
		}
		var tags []tagged
		for _, s := range summaries {
			for _, ref := range s.RepoTags {
				tag := strings.TrimPrefix(ref, rc.Topology.Prefix+":")
				if tag == ref || tag == "latest" || tag == "<none>" {
					continue
				}
				tags = append(tags, tagged{tag: ref, created: s.Created})
			}
		}
		sort.Slice(tags, func(a, b int) bool { return tags[a].created > tags[b].created })

		for idx, t := range tags {
			if idx < keepImageTags {
				continue
			}
			if _, err := cli.ImageRemove(ctx, t.tag, image.RemoveOptions{}); err != nil {
				rc.OnLog("cleanup", fmt.Sprintf("could not remove %s: %v", t.tag, err))
			}
		}
		return nil
	})
}
