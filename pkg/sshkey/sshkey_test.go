package sshkey

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/onsi/gomega"
	"golang.org/x/crypto/ssh"
)

func Test_Generate_ProducesParsablePair(t *testing.T) {
	RegisterTestingT(t)

	pair, err := Generate()
	Expect(err).NotTo(HaveOccurred())

	signer, err := ssh.ParsePrivateKey(pair.PrivatePEM)
	Expect(err).NotTo(HaveOccurred())

	derived := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(signer.PublicKey())))
	Expect(derived).To(Equal(pair.PublicLine))
	Expect(pair.PublicLine).To(HavePrefix("ssh-ed25519 "))
}

func Test_Load_RoundTripsGeneratedKey(t *testing.T) {
	RegisterTestingT(t)

	pair, err := Generate()
	Expect(err).NotTo(HaveOccurred())

	path := filepath.Join(t.TempDir(), "id_ed25519")
	Expect(os.WriteFile(path, pair.PrivatePEM, 0o600)).To(Succeed())

	loaded, err := Load(path)
	Expect(err).NotTo(HaveOccurred())
	Expect(loaded.PublicLine).To(Equal(pair.PublicLine))
}

func Test_Load_MissingFileFails(t *testing.T) {
	RegisterTestingT(t)

	_, err := Load(filepath.Join(t.TempDir(), "absent"))
	Expect(err).To(HaveOccurred())
}

func Test_LoadOrGenerate_EmptyPathGenerates(t *testing.T) {
	RegisterTestingT(t)

	pair, err := LoadOrGenerate("")
	Expect(err).NotTo(HaveOccurred())
	Expect(pair.PrivatePEM).NotTo(BeEmpty())
}
