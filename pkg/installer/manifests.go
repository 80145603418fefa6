package installer

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/deployctl/deployctl/pkg/manifest"
	"github.com/deployctl/deployctl/pkg/runcontext"
	"github.com/deployctl/deployctl/pkg/sshclient"
	"github.com/deployctl/deployctl/pkg/waiter"
)

const (
	manifestPath = "/tmp/deployctl-manifests.yaml"

	rolloutAttempts = 90
	rolloutInterval = 2 * time.Second
)

// rolloutTarget is one workload DeployManifests waits on after apply.
type rolloutTarget struct {
	Kind    string // "deployment" | "statefulset"
	Name    string
	Desired int
}

// rolloutTargets lists every workload the rendered manifests schedule,
// in stable order, with the replica count each must reach.
func (i *Installer) rolloutTargets() []rolloutTarget {
	prefix := i.RC.Topology.Prefix
	var targets []rolloutTarget

	for kind := range i.Config.Databases {
		// sqlite is file-backed and schedules no workload of its own,
		// so there is nothing to wait on
		if kind == "sqlite" {
			continue
		}
		targets = append(targets, rolloutTarget{Kind: "statefulset", Name: prefix + "-" + kind, Desired: 1})
	}
	for name, svc := range i.Config.Services {
		kind := "deployment"
		if svc.MountPath != "" {
			kind = "statefulset"
		}
		targets = append(targets, rolloutTarget{Kind: kind, Name: prefix + "-" + name, Desired: 1})
	}
	if i.Config.App != nil {
		for name, proc := range i.Config.App.Processes {
			desired := proc.Replicas
			if desired == 0 {
				desired = 1
			}
			targets = append(targets, rolloutTarget{Kind: "deployment", Name: prefix + "-" + name, Desired: desired})
		}
	}
	if i.tunnelToken != "" {
		targets = append(targets, rolloutTarget{Kind: "deployment", Name: prefix + "-cloudflared", Desired: 2})
	}

	sort.Slice(targets, func(a, b int) bool { return targets[a].Name < targets[b].Name })
	return targets
}

// DeployManifests renders the full manifest set, applies it on the
// master, and polls each workload's rollout until every desired
// replica reports ready, emitting progress as counts rise.
func (i *Installer) DeployManifests(ctx context.Context) error {
	rc := i.RC

	return rc.Step(ctx, "deploy manifests", func(ctx context.Context) error {
		rendered, err := manifest.Render(manifest.BuildAll(i.Config, i.manifestParams()))
		if err != nil {
			return err
		}

		master, err := i.master()
		if err != nil {
			return err
		}
		if err := writeRemoteFile(master, manifestPath, rendered); err != nil {
			return errors.Wrap(err, "uploading manifests")
		}
		if _, err := i.run(master, "deploy", fmt.Sprintf("%s apply -f %s", kubectlBin, manifestPath)); err != nil {
			return errors.Wrap(err, "applying manifests")
		}

		for _, target := range i.rolloutTargets() {
			if err := i.waitForRollout(master, target); err != nil {
				return err
			}
		}
		return nil
	})
}

// waitForRollout polls one workload's ready count until it reaches the
// desired replicas. Progress callbacks only ever see non-decreasing
// counts for a given workload.
func (i *Installer) waitForRollout(master Executor, target rolloutTarget) error {
	rc := i.RC
	query := fmt.Sprintf("%s -n %s get %s %s -o jsonpath='{.status.readyReplicas}'", kubectlBin, namespace, target.Kind, target.Name)

	lastReady := -1
	message := fmt.Sprintf("waiting for %s rollout", target.Name)
	return waiter.Poll(rolloutAttempts, rolloutInterval, message, func() (bool, error) {
		res, err := master.Execute(query, sshclient.ExecOptions{RaiseOnError: false, Timeout: 15 * time.Second})
		if err != nil {
			return false, err
		}
		if res.ExitCode != 0 {
			return false, nil
		}
		ready, err := strconv.Atoi(strings.TrimSpace(res.Output))
		if err != nil {
			ready = 0
		}
		if ready > lastReady {
			lastReady = ready
			rc.OnRolloutProgress(runcontext.RolloutProgress{Workload: target.Name, Ready: ready, Desired: target.Desired})
		}
		return ready >= target.Desired, nil
	})
}
