package installer

import (
	"strings"
	"testing"
	"time"

	. "github.com/onsi/gomega"

	"github.com/deployctl/deployctl/pkg/config"
	"github.com/deployctl/deployctl/pkg/runcontext"
	"github.com/deployctl/deployctl/pkg/sshclient"
	"github.com/deployctl/deployctl/pkg/sshkey"
	"github.com/deployctl/deployctl/pkg/topology"
)

// fakeHost scripts a remote host: each command is matched by substring
// against the configured responses in order (first match wins), and
// every executed command is recorded for assertions.
type scripted struct {
	needle string
	result sshclient.ExecResult
}

type fakeHost struct {
	executed  []string
	responses []scripted
}

func (f *fakeHost) Execute(command string, opts sshclient.ExecOptions) (sshclient.ExecResult, error) {
	f.executed = append(f.executed, command)
	for _, s := range f.responses {
		if strings.Contains(command, s.needle) {
			return s.result, nil
		}
	}
	return sshclient.ExecResult{ExitCode: 0}, nil
}

func (f *fakeHost) ExecuteWithRetry(command string, opts sshclient.ExecOptions, retries int, backoff time.Duration) (sshclient.ExecResult, error) {
	return f.Execute(command, opts)
}

func (f *fakeHost) ReadFile(path string) []byte { return nil }

func (f *fakeHost) ran(needle string) bool {
	for _, cmd := range f.executed {
		if strings.Contains(cmd, needle) {
			return true
		}
	}
	return false
}

func Test_FirewallRules_ProductionOpensClusterPort(t *testing.T) {
	RegisterTestingT(t)

	ports := func(target config.Target) []string {
		var out []string
		for _, r := range FirewallRules(target) {
			out = append(out, r.Port)
		}
		return out
	}

	Expect(ports(config.TargetProduction)).To(ContainElement("6443"))
	Expect(ports(config.TargetSandbox)).NotTo(ContainElement("6443"))
	Expect(ports(config.TargetSandbox)).To(ContainElements("22", "80", "443"))
}

func Test_CloudInit_CreatesDeployUserWithKey(t *testing.T) {
	RegisterTestingT(t)

	data := CloudInit("ssh-ed25519 AAAA test@host")
	Expect(data).To(HavePrefix("#cloud-config"))
	Expect(data).To(ContainSubstring("name: deploy"))
	Expect(data).To(ContainSubstring("ssh-ed25519 AAAA test@host"))
	Expect(data).To(ContainSubstring("NOPASSWD:ALL"))
}

func Test_EnsureMounted_AlreadyMountedIsNoOp(t *testing.T) {
	RegisterTestingT(t)

	host := &fakeHost{responses: []scripted{
		{needle: "mountpoint -q", result: sshclient.ExecResult{ExitCode: 0}},
	}}

	Expect(EnsureMounted(host, "/dev/sdb", "/mnt/data/vol")).To(Succeed())
	Expect(host.executed).To(HaveLen(1))
	Expect(host.ran("mkfs")).To(BeFalse())
	Expect(host.ran("mount /dev")).To(BeFalse())
}

func Test_EnsureMounted_ExistingFilesystemIsNeverReformatted(t *testing.T) {
	RegisterTestingT(t)

	mountChecks := 0
	host := &fakeHost{responses: []scripted{
		{needle: "blkid -s UUID", result: sshclient.ExecResult{ExitCode: 0, Output: "abcd-1234\n"}},
		{needle: "sudo blkid", result: sshclient.ExecResult{ExitCode: 0, Output: `/dev/sdb: TYPE="xfs"`}},
	}}
	// first mountpoint check reports unmounted, the verify re-check
	// reports mounted
	hostWrapped := &sequencedHost{inner: host, onMountCheck: func() int {
		mountChecks++
		if mountChecks == 1 {
			return 1
		}
		return 0
	}}

	Expect(EnsureMounted(hostWrapped, "/dev/sdb", "/mnt/data/vol")).To(Succeed())
	Expect(host.ran("mkfs.xfs")).To(BeFalse())
	Expect(host.ran("sudo mount /dev/sdb /mnt/data/vol")).To(BeTrue())
	Expect(host.ran("/etc/fstab")).To(BeTrue())
}

func Test_EnsureMounted_BlankDeviceGetsFormatted(t *testing.T) {
	RegisterTestingT(t)

	mountChecks := 0
	host := &fakeHost{responses: []scripted{
		{needle: "blkid -s UUID", result: sshclient.ExecResult{ExitCode: 0, Output: "abcd-1234\n"}},
		{needle: "sudo blkid", result: sshclient.ExecResult{ExitCode: 0, Output: ""}},
	}}
	hostWrapped := &sequencedHost{inner: host, onMountCheck: func() int {
		mountChecks++
		if mountChecks == 1 {
			return 1
		}
		return 0
	}}

	Expect(EnsureMounted(hostWrapped, "/dev/sdb", "/mnt/data/vol")).To(Succeed())
	Expect(host.ran("mkfs.xfs /dev/sdb")).To(BeTrue())
}

// sequencedHost lets the mountpoint check return different exit codes
// across calls while delegating everything else to the inner fake.
type sequencedHost struct {
	inner        *fakeHost
	onMountCheck func() int
}

func (s *sequencedHost) Execute(command string, opts sshclient.ExecOptions) (sshclient.ExecResult, error) {
	if strings.Contains(command, "mountpoint -q") {
		s.inner.executed = append(s.inner.executed, command)
		return sshclient.ExecResult{ExitCode: s.onMountCheck()}, nil
	}
	return s.inner.Execute(command, opts)
}

func (s *sequencedHost) ExecuteWithRetry(command string, opts sshclient.ExecOptions, retries int, backoff time.Duration) (sshclient.ExecResult, error) {
	return s.Execute(command, opts)
}

func (s *sequencedHost) ReadFile(path string) []byte { return nil }

func testInstaller(cfg *config.Configuration) *Installer {
	top := topology.New("myapp")
	rc := runcontext.New(runcontext.Options{Topology: top})
	keys, _ := sshkey.Generate()
	return New(cfg, rc, keys)
}

func Test_RolloutTargets_CoverEveryWorkload(t *testing.T) {
	RegisterTestingT(t)

	cfg := &config.Configuration{
		Name: "myapp",
		Databases: map[string]config.DatabaseSpec{
			"postgres": {Username: "app", Database: "app", Password: "pwd"},
		},
		Services: map[string]config.ServiceSpec{
			"redis": {Image: "redis:7", Port: 6379},
		},
		App: &config.AppConfig{Processes: map[string]config.ProcessSpec{
			"web": {Command: "bin/server", Port: 3000, Replicas: 2},
		}},
	}
	inst := testInstaller(cfg)
	inst.tunnelToken = "token"

	var names []string
	var kinds []string
	for _, target := range inst.rolloutTargets() {
		names = append(names, target.Name)
		kinds = append(kinds, target.Kind)
	}
	Expect(names).To(Equal([]string{"myapp-cloudflared", "myapp-postgres", "myapp-redis", "myapp-web"}))
	Expect(kinds).To(ContainElement("statefulset"))
}

func Test_IngressRules_MapHostnamesToClusterServices(t *testing.T) {
	RegisterTestingT(t)

	cfg := &config.Configuration{
		Name:       "myapp",
		Cloudflare: &config.CloudflareConfig{Domain: "example.com"},
		App: &config.AppConfig{Processes: map[string]config.ProcessSpec{
			"web": {Command: "bin/server", Port: 3000, Replicas: 2, Subdomain: "@"},
			"api": {Command: "bin/api", Port: 4000, Replicas: 2, Subdomain: "api"},
		}},
	}
	inst := testInstaller(cfg)

	rules := inst.ingressRules()
	Expect(rules).To(HaveKeyWithValue("example.com", "http://myapp-web:3000"))
	Expect(rules).To(HaveKeyWithValue("api.example.com", "http://myapp-api:4000"))
}
