package installer

import "fmt"

// CloudInit renders the user-data every new server boots with: a
// deploy user holding the run's public key and passwordless sudo, so
// the installer never needs root's password or the provider's own
// root key handling.
func CloudInit(sshPublicKey string) string {
	return fmt.Sprintf(`#cloud-config
users:
  - name: %s
    groups: [sudo]
    shell: /bin/bash
    sudo: ["ALL=(ALL) NOPASSWD:ALL"]
    ssh_authorized_keys:
      - %s
package_update: true
packages:
  - curl
  - xfsprogs
`, deployUser, sshPublicKey)
}
