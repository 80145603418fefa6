package installer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/deployctl/deployctl/pkg/clouds/compute"
	"github.com/deployctl/deployctl/pkg/naming"
	"github.com/deployctl/deployctl/pkg/sshclient"
	"github.com/deployctl/deployctl/pkg/topology"
)

const defaultVolumeSizeGB = 10

// volumeSpec is one persistent volume the configuration implies: a
// database's data directory or a service's mount path.
type volumeSpec struct {
	Name   string
	RunsOn []string
}

// configuredVolumes lists every volume the configuration implies, in
// stable name order so repeated runs attach in the same sequence.
func (i *Installer) configuredVolumes() []volumeSpec {
	var specs []volumeSpec
	for kind, db := range i.Config.Databases {
		specs = append(specs, volumeSpec{Name: kind, RunsOn: db.RunsOn})
	}
	for name, svc := range i.Config.Services {
		if svc.MountPath == "" {
			continue
		}
		specs = append(specs, volumeSpec{Name: name, RunsOn: svc.RunsOn})
	}
	sort.Slice(specs, func(a, b int) bool { return specs[a].Name < specs[b].Name })
	return specs
}

// ProvisionVolumes creates, attaches and mounts one volume per
// database and per service with a mount path. Mounting is idempotent:
// an already-mounted volume is left alone, and an existing filesystem
// is never reformatted.
func (i *Installer) ProvisionVolumes(ctx context.Context) error {
	rc := i.RC

	return rc.Step(ctx, "provision volumes", func(ctx context.Context) error {
		for _, spec := range i.configuredVolumes() {
			server, key := i.placementFor(spec.RunsOn)
			if server == nil {
				return errors.Errorf("no server available to attach volume %q", spec.Name)
			}

			name := naming.Role(rc.Topology.Prefix, spec.Name)
			volume, err := rc.Compute.FindOrCreateVolume(ctx, compute.CreateVolumeInput{
				Name:     name,
				SizeGB:   defaultVolumeSizeGB,
				Location: i.Config.Compute.Location,
				Labels:   i.serverLabels(),
			})
			if err != nil {
				return err
			}

			if volume.ServerID == "" {
				if err := rc.Compute.AttachVolume(ctx, volume.ID, server.ID); err != nil {
					return err
				}
			}

			ssh, err := i.sshFor(*server)
			if err != nil {
				return err
			}
			device, err := rc.Compute.WaitForDevicePath(ctx, volume.ID, ssh)
			if err != nil {
				return err
			}

			mountPoint := "/mnt/data/" + name
			if err := EnsureMounted(ssh, device, mountPoint); err != nil {
				return errors.Wrapf(err, "mounting volume %q on %q", name, key)
			}

			rc.Topology.Volumes = append(rc.Topology.Volumes, topology.Volume{ID: volume.ID, Name: name, ServerID: server.ID})
		}
		return nil
	})
}

// placementFor picks the server a volume attaches to: the first server
// of the first runs_on group, falling back to the master.
func (i *Installer) placementFor(runsOn []string) (*topology.Server, string) {
	group := "master"
	if len(runsOn) > 0 {
		group = runsOn[0]
	}
	key := naming.ServerName(i.RC.Topology.Prefix, group, 1)
	if server, ok := i.RC.Topology.Servers[key]; ok {
		return &server, key
	}
	masterKey := naming.ServerName(i.RC.Topology.Prefix, "master", 1)
	if server, ok := i.RC.Topology.Servers[masterKey]; ok {
		return &server, masterKey
	}
	return nil, ""
}

// EnsureMounted brings device up at mountPoint and pins it in fstab by
// UUID. Already mounted is a no-op; a device carrying a filesystem is
// never reformatted.
func EnsureMounted(ssh Executor, device, mountPoint string) error {
	if mounted(ssh, mountPoint) {
		return nil
	}

	blkid, err := ssh.Execute("sudo blkid "+device, sshclient.ExecOptions{RaiseOnError: false, Timeout: 30 * time.Second})
	if err != nil {
		return err
	}
	if strings.TrimSpace(blkid.Output) == "" {
		if _, err := ssh.Execute("sudo mkfs.xfs "+device, sshclient.ExecOptions{RaiseOnError: true, Timeout: 120 * time.Second}); err != nil {
			return errors.Wrap(err, "formatting volume")
		}
	}

	mountCmd := fmt.Sprintf("sudo mkdir -p %s && sudo mount %s %s", mountPoint, device, mountPoint)
	if _, err := ssh.Execute(mountCmd, sshclient.ExecOptions{RaiseOnError: true, Timeout: 60 * time.Second}); err != nil {
		return errors.Wrap(err, "mounting volume")
	}

	if err := persistInFstab(ssh, device, mountPoint); err != nil {
		return err
	}

	if !mounted(ssh, mountPoint) {
		return errors.Errorf("%s did not come up as a mountpoint", mountPoint)
	}
	return nil
}

func mounted(ssh Executor, mountPoint string) bool {
	res, err := ssh.Execute("mountpoint -q "+mountPoint, sshclient.ExecOptions{RaiseOnError: false, Timeout: 30 * time.Second})
	return err == nil && res.ExitCode == 0
}

// persistInFstab records the mount by UUID, once, so the volume
// survives a reboot without doubling the entry on the next deploy.
func persistInFstab(ssh Executor, device, mountPoint string) error {
	res, err := ssh.Execute(fmt.Sprintf("sudo blkid -s UUID -o value %s", device), sshclient.ExecOptions{RaiseOnError: true, Timeout: 30 * time.Second})
	if err != nil {
		return errors.Wrap(err, "reading volume UUID")
	}
	uuid := strings.TrimSpace(res.Output)
	if uuid == "" {
		return errors.New("volume has no UUID after mount")
	}

	entry := fmt.Sprintf("UUID=%s %s xfs defaults,nofail 0 2", uuid, mountPoint)
	cmd := fmt.Sprintf("grep -q 'UUID=%s' /etc/fstab || echo '%s' | sudo tee -a /etc/fstab > /dev/null", uuid, entry)
	if _, err := ssh.Execute(cmd, sshclient.ExecOptions{RaiseOnError: true, Timeout: 30 * time.Second}); err != nil {
		return errors.Wrap(err, "persisting fstab entry")
	}
	return nil
}
