package naming

import (
	"testing"

	. "github.com/onsi/gomega"

	"github.com/deployctl/deployctl/pkg/config"
)

func Test_ValidateSlug_RejectsNonMatchingInput(t *testing.T) {
	RegisterTestingT(t)

	Expect(ValidateSlug("a1b2c3")).To(Succeed())
	Expect(ValidateSlug("A1B2C3")).To(HaveOccurred())
	Expect(ValidateSlug("a1b2c")).To(HaveOccurred())
	Expect(ValidateSlug("a1b2c3d")).To(HaveOccurred())
	Expect(ValidateSlug("")).To(HaveOccurred())
}

func Test_Prefix_ProductionUsesConfigNameUnchanged(t *testing.T) {
	RegisterTestingT(t)

	cfg := &config.Configuration{Name: "myapp", Target: config.TargetProduction}
	prefix, err := Prefix(cfg, "")
	Expect(err).NotTo(HaveOccurred())
	Expect(prefix).To(Equal("myapp"))
}

func Test_Prefix_SandboxSplicesSlugIn(t *testing.T) {
	RegisterTestingT(t)

	cfg := &config.Configuration{Name: "myapp", Target: config.TargetSandbox}
	prefix, err := Prefix(cfg, "a1b2c3")
	Expect(err).NotTo(HaveOccurred())
	Expect(prefix).To(Equal("myapp-sandbox-a1b2c3"))

	_, err = Prefix(cfg, "not-hex!")
	Expect(err).To(HaveOccurred())
}

func Test_ServerName_And_ParseServerName_RoundTrip(t *testing.T) {
	RegisterTestingT(t)

	name := ServerName("myapp", "master", 1)
	Expect(name).To(Equal("myapp-master-1"))

	group, index, ok := ParseServerName("myapp", name)
	Expect(ok).To(BeTrue())
	Expect(group).To(Equal("master"))
	Expect(index).To(Equal(1))

	_, _, ok = ParseServerName("myapp", "someone-elses-server-7")
	Expect(ok).To(BeFalse())
}

func Test_MemoryClassMB_KnownAndUnknownInstanceTypes(t *testing.T) {
	RegisterTestingT(t)

	mb, ok := MemoryClassMB("hetzner", "cpx21")
	Expect(ok).To(BeTrue())
	Expect(mb).To(Equal(int64(4096)))

	_, ok = MemoryClassMB("hetzner", "does-not-exist")
	Expect(ok).To(BeFalse())

	_, ok = MemoryClassMB("unknown-provider", "cpx21")
	Expect(ok).To(BeFalse())
}
