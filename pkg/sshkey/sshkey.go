// Package sshkey loads the operator's SSH key pair or mints a fresh
// ed25519 one for the run. The public side goes into cloud-init as the
// deploy user's authorized key; the private side authenticates every
// remote command the installer runs.
package sshkey

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"os"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
)

// KeyPair carries both halves of an SSH identity: the PEM-encoded
// private key sshclient parses, and the single-line authorized_keys
// form providers and cloud-init consume.
type KeyPair struct {
	PrivatePEM []byte
	PublicLine string
}

// Load reads the private key at path (the configured ssh_key_path) and
// derives the matching public line from it.
func Load(path string) (*KeyPair, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading ssh key %q", path)
	}
	signer, err := ssh.ParsePrivateKey(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing ssh key %q", path)
	}
	return &KeyPair{PrivatePEM: raw, PublicLine: publicLine(signer)}, nil
}

// Generate mints a fresh ed25519 pair for runs that don't configure a
// key path, such as sandboxes.
func Generate() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "generating ed25519 key")
	}

	block, err := ssh.MarshalPrivateKey(priv, "")
	if err != nil {
		return nil, errors.Wrap(err, "encoding private key")
	}
	privatePEM := pem.EncodeToMemory(block)

	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return nil, errors.Wrap(err, "deriving public key")
	}
	return &KeyPair{
		PrivatePEM: privatePEM,
		PublicLine: strings.TrimSpace(string(ssh.MarshalAuthorizedKey(sshPub))),
	}, nil
}

// LoadOrGenerate resolves the key the run uses: the configured path if
// set, a generated ephemeral pair otherwise.
func LoadOrGenerate(path string) (*KeyPair, error) {
	if path != "" {
		return Load(path)
	}
	return Generate()
}

func publicLine(signer ssh.Signer) string {
	return strings.TrimSpace(string(ssh.MarshalAuthorizedKey(signer.PublicKey())))
}
